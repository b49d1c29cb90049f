package folders

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/licitaflow/stagegate/internal/domain"
	"github.com/licitaflow/stagegate/internal/store"
)

// Service loads and saves the folders of each user.
type Service struct {
	DB     *sql.DB
	Repo   *store.FolderRepo
	Logger *slog.Logger
}

// NewService creates a folder service backed by db.
func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{DB: db, Repo: &store.FolderRepo{}, Logger: logger}
}

// Views returns the user's folders with predicates attached. A corrupt
// payload yields no folders.
func (s *Service) Views(ctx context.Context, user *domain.User) ([]View, error) {
	raw, err := s.Repo.Load(ctx, s.DB, ownerKey(user))
	if err != nil {
		return nil, err
	}
	return Hydrate(Decode(raw, s.Logger), DefaultRegistry(user)), nil
}

// Save replaces the user's folders. Anonymous callers have no folder
// list of their own and are refused.
func (s *Service) Save(ctx context.Context, user *domain.User, folders []Folder) error {
	if user == nil || user.Name == "" {
		return domain.ErrPermissionDenied
	}
	raw, err := Encode(folders)
	if err != nil {
		return err
	}
	return s.Repo.Save(ctx, s.DB, ownerKey(user), raw, time.Now().Unix())
}

// Find returns the view with the given id.
func (s *Service) Find(ctx context.Context, user *domain.User, id string) (View, bool, error) {
	views, err := s.Views(ctx, user)
	if err != nil {
		return View{}, false, err
	}
	for _, v := range views {
		if v.ID == id {
			return v, true, nil
		}
	}
	return View{}, false, nil
}

func ownerKey(user *domain.User) string {
	if user == nil {
		return ""
	}
	return user.Name
}
