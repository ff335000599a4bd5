package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type EpisodeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, episode *types.Episode) (*types.Episode, error)
	Save(ctx context.Context, tx *gorm.DB, episode *types.Episode) error
	GetByID(ctx context.Context, tx *gorm.DB, episodeID int64) (*types.Episode, error)
	NextEpisodeNo(ctx context.Context, tx *gorm.DB, productID int64) (int, error)
	RecentWithTitle(ctx context.Context, tx *gorm.DB, productID int64, title string, since time.Time) (bool, error)
	CountOpenByProduct(ctx context.Context, tx *gorm.DB, productID int64) (int64, error)
	CountOpenSince(ctx context.Context, tx *gorm.DB, productID int64, since time.Time) (int64, error)
	ListReservedDue(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.Episode, error)
	ExistsByEpubFileID(ctx context.Context, tx *gorm.DB, fileGroupID int64) (bool, error)
	SoftDelete(ctx context.Context, tx *gorm.DB, episodeID int64) error
}

type episodeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEpisodeRepo(db *gorm.DB, baseLog *logger.Logger) EpisodeRepo {
	return &episodeRepo{db: db, log: baseLog.With("repo", "EpisodeRepo")}
}

func (er *episodeRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return er.db
}

func (er *episodeRepo) Create(ctx context.Context, tx *gorm.DB, episode *types.Episode) (*types.Episode, error) {
	if err := er.conn(tx).WithContext(ctx).Create(episode).Error; err != nil {
		return nil, err
	}
	return episode, nil
}

func (er *episodeRepo) Save(ctx context.Context, tx *gorm.DB, episode *types.Episode) error {
	return er.conn(tx).WithContext(ctx).Save(episode).Error
}

// GetByID returns soft-deleted rows too; callers distinguish DELETED_EPISODE
// from plain not-found.
func (er *episodeRepo) GetByID(ctx context.Context, tx *gorm.DB, episodeID int64) (*types.Episode, error) {
	var result types.Episode
	err := er.conn(tx).WithContext(ctx).
		Where("id = ?", episodeID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// NextEpisodeNo is MAX+1 over the product, deleted rows included so a number
// is never reused. The unique (product_id, episode_no) index rejects the loser
// of a concurrent create.
func (er *episodeRepo) NextEpisodeNo(ctx context.Context, tx *gorm.DB, productID int64) (int, error) {
	var maxNo *int
	err := er.conn(tx).WithContext(ctx).
		Model(&types.Episode{}).
		Where("product_id = ?", productID).
		Select("MAX(episode_no)").
		Scan(&maxNo).Error
	if err != nil {
		return 0, err
	}
	if maxNo == nil {
		return 1, nil
	}
	return *maxNo + 1, nil
}

func (er *episodeRepo) RecentWithTitle(ctx context.Context, tx *gorm.DB, productID int64, title string, since time.Time) (bool, error) {
	var count int64
	if err := er.conn(tx).WithContext(ctx).
		Model(&types.Episode{}).
		Where("product_id = ? AND title = ? AND created_date >= ?", productID, title, since).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (er *episodeRepo) CountOpenByProduct(ctx context.Context, tx *gorm.DB, productID int64) (int64, error) {
	var count int64
	err := er.conn(tx).WithContext(ctx).
		Model(&types.Episode{}).
		Where("product_id = ? AND open_yn = ? AND use_yn = ?", productID, types.YnYes, types.YnYes).
		Count(&count).Error
	return count, err
}

func (er *episodeRepo) CountOpenSince(ctx context.Context, tx *gorm.DB, productID int64, since time.Time) (int64, error) {
	var count int64
	err := er.conn(tx).WithContext(ctx).
		Model(&types.Episode{}).
		Where("product_id = ? AND open_yn = ? AND use_yn = ? AND updated_date >= ?",
			productID, types.YnYes, types.YnYes, since).
		Count(&count).Error
	return count, err
}

// ListReservedDue skips episodes whose open_yn was flipped manually after the
// reservation was made: the manual override wins over the schedule.
func (er *episodeRepo) ListReservedDue(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.Episode, error) {
	var results []*types.Episode
	if err := er.conn(tx).WithContext(ctx).
		Where("publish_reserve_yn = ? AND open_yn = ? AND use_yn = ?", types.YnYes, types.YnNo, types.YnYes).
		Where("publish_reserve_date IS NOT NULL AND publish_reserve_date <= ?", now).
		Where("open_changed_date IS NULL OR open_changed_date <= publish_reserve_date").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (er *episodeRepo) ExistsByEpubFileID(ctx context.Context, tx *gorm.DB, fileGroupID int64) (bool, error) {
	var count int64
	if err := er.conn(tx).WithContext(ctx).
		Model(&types.Episode{}).
		Where("epub_file_id = ?", fileGroupID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (er *episodeRepo) SoftDelete(ctx context.Context, tx *gorm.DB, episodeID int64) error {
	return er.conn(tx).WithContext(ctx).
		Model(&types.Episode{}).
		Where("id = ?", episodeID).
		Update("use_yn", types.YnNo).Error
}
