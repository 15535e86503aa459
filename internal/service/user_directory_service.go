package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-programs-api/internal/models"
)

const displayNameKeyPrefix = "users:name:"

type userNameReader interface {
	FindNamesByIDs(ctx context.Context, ids []string) ([]models.UserName, error)
}

type nameCache interface {
	GetStrings(ctx context.Context, keys []string) (map[string]string, error)
	SetStrings(ctx context.Context, values map[string]string, ttl time.Duration) error
}

// UserDirectoryService resolves user ids to display names with a read-through cache.
type UserDirectoryService struct {
	users  userNameReader
	cache  nameCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewUserDirectoryService constructs the directory. cache may be nil.
func NewUserDirectoryService(users userNameReader, cache nameCache, ttl time.Duration, logger *zap.Logger) *UserDirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserDirectoryService{users: users, cache: cache, ttl: ttl, logger: logger}
}

// DisplayNames returns a name for every distinct id. Ids the directory does not
// know, or cannot resolve right now, map to themselves.
func (s *UserDirectoryService) DisplayNames(ctx context.Context, ids []string) map[string]string {
	ids = normalizeIDs(ids)
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names
	}

	missing := ids
	if s.cache != nil {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = displayNameKeyPrefix + id
		}
		cached, err := s.cache.GetStrings(ctx, keys)
		if err != nil {
			s.logger.Warn("display name cache unavailable", zap.Error(err))
		}
		missing = missing[:0:0]
		for _, id := range ids {
			if name, ok := cached[displayNameKeyPrefix+id]; ok {
				names[id] = name
				continue
			}
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 && s.users != nil {
		resolved, err := s.users.FindNamesByIDs(ctx, missing)
		if err != nil {
			s.logger.Warn("failed to resolve display names", zap.Int("ids", len(missing)), zap.Error(err))
		} else {
			fresh := make(map[string]string, len(resolved))
			for _, u := range resolved {
				names[u.ID] = u.FullName
				fresh[displayNameKeyPrefix+u.ID] = u.FullName
			}
			if s.cache != nil && len(fresh) > 0 {
				if err := s.cache.SetStrings(ctx, fresh, s.ttl); err != nil {
					s.logger.Warn("failed to cache display names", zap.Int("ids", len(fresh)), zap.Error(err))
				}
			}
		}
	}

	for _, id := range ids {
		if _, ok := names[id]; !ok {
			names[id] = id
		}
	}
	return names
}
