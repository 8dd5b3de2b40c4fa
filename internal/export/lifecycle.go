package export

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"geoexport/internal/domain"
	"geoexport/internal/geostore"
)

// tempName produces a unique temporary dataset name with a stage hint.
func tempName(stage string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return "tmp_" + stage + "_" + suffix
}

// tempScope tracks the ephemeral datasets one pipeline run creates (working
// copies, join outputs, statistics tables) and removes all of them at the end
// of the run, success or failure.
type tempScope struct {
	store   geostore.Store
	session *geostore.Session
	logger  *slog.Logger
	names   []string
}

func newTempScope(store geostore.Store, session *geostore.Session, logger *slog.Logger) *tempScope {
	return &tempScope{store: store, session: session, logger: logger}
}

// track registers a temporary name with the scope and the session, returning
// the name for chaining.
func (s *tempScope) track(name string) string {
	s.names = append(s.names, name)
	if s.session != nil {
		s.session.Register(name)
	}
	return name
}

// cleanup removes every tracked temporary: first any session registrations,
// re-querying after each removal since removal invalidates the positions of
// later entries, then the backing artifact if it still exists. Cleanup is
// best-effort: failures are logged and never escalated.
func (s *tempScope) cleanup(ctx context.Context) {
	for _, name := range s.names {
		if s.session != nil {
			for {
				i := s.session.FindIndex(name)
				if i < 0 {
					break
				}
				s.session.RemoveAt(i)
			}
		}
		if s.store.DatasetExists(ctx, domain.Dataset{Name: name}) {
			if err := s.store.DeleteDataset(ctx, name); err != nil {
				s.logger.Warn("temporary cleanup failed", "dataset", name, "error", err)
			}
		}
	}
	s.names = nil
}
