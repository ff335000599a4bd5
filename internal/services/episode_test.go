package services

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
)

// fakeBucket points signed PUTs at a local test server and records deletes.
type fakeBucket struct {
	mu       sync.Mutex
	putURL   string
	failPuts bool
	uploads  [][]byte
	deleted  []string
}

func (fb *fakeBucket) setFailPuts(fail bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failPuts = fail
}

func (fb *fakeBucket) failing() bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.failPuts
}

func (fb *fakeBucket) SignedPutURL(ctx context.Context, class, key, contentType string) (string, error) {
	return fb.putURL + "/" + key, nil
}

func (fb *fakeBucket) SignedGetURL(ctx context.Context, class, key string) (string, error) {
	return fb.putURL + "/" + key, nil
}

func (fb *fakeBucket) Upload(ctx context.Context, class, key, contentType string, data []byte) error {
	return nil
}

func (fb *fakeBucket) Delete(ctx context.Context, class, key string) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.deleted = append(fb.deleted, key)
	return nil
}

func (fb *fakeBucket) PublicURL(class, key string) string {
	return "https://cdn.test/" + class + "/" + key
}

func (fb *fakeBucket) recordUpload(body []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.uploads = append(fb.uploads, body)
}

func (fb *fakeBucket) uploadCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.uploads)
}

type episodeFixture struct {
	db     *gorm.DB
	svc    EpisodeService
	bucket *fakeBucket
}

func newEpisodeFixture(t *testing.T) *episodeFixture {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger(t)

	bucket := &fakeBucket{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if bucket.failing() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body, _ := io.ReadAll(r.Body)
		bucket.recordUpload(body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	bucket.putURL = srv.URL

	episodes := repos.NewEpisodeRepo(db, log)
	products := repos.NewProductRepo(db, log)
	files := repos.NewFileRepo(db, log)
	bookmarks := repos.NewBookmarkRepo(db, log)
	profiles := repos.NewProfileRepo(db, log)
	notificationRows := repos.NewUserNotificationRepo(db, log)
	notifications := NewNotificationService(log, db, bookmarks, profiles, notificationRows)

	return &episodeFixture{
		db:     db,
		svc:    NewEpisodeService(log, db, episodes, products, files, bucket, notifications),
		bucket: bucket,
	}
}

func (f *episodeFixture) seedProduct(t *testing.T, priceType string) *types.Product {
	t.Helper()
	product := &types.Product{
		Title:       "연재작",
		AuthorName:  "작가",
		PriceType:   priceType,
		OpenYn:      types.YnYes,
		UseYn:       types.YnYes,
		RatingsCode: types.RatingsAll,
	}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestSaveEpisode_CreateNumbersAndUploadsEpub(t *testing.T) {
	f := newEpisodeFixture(t)
	product := f.seedProduct(t, types.PriceTypePaid)
	now := time.Now()

	first, err := f.svc.SaveEpisode(context.Background(), SaveEpisodeInput{
		ProductID: product.ID,
		Title:     "1화 제목",
		Content:   "<p>본문</p>",
		PriceType: types.PriceTypeFree,
		OpenYn:    types.YnNo,
	}, now)
	if err != nil {
		t.Fatalf("SaveEpisode: %v", err)
	}
	if first.EpisodeNo != 1 {
		t.Fatalf("episode_no = %d, want 1", first.EpisodeNo)
	}
	if first.EpubFileID == nil {
		t.Fatalf("episode not linked to epub file group")
	}

	second, err := f.svc.SaveEpisode(context.Background(), SaveEpisodeInput{
		ProductID: product.ID,
		Title:     "2화 제목",
		Content:   "<p>본문</p>",
		PriceType: types.PriceTypePaid,
		OpenYn:    types.YnNo,
	}, now)
	if err != nil {
		t.Fatalf("SaveEpisode second: %v", err)
	}
	if second.EpisodeNo != 2 {
		t.Fatalf("episode_no = %d, want 2", second.EpisodeNo)
	}

	if f.bucket.uploadCount() != 2 {
		t.Fatalf("uploads = %d, want 2", f.bucket.uploadCount())
	}
	if !bytes.HasPrefix(f.bucket.uploads[0], []byte("PK")) {
		t.Fatalf("upload is not a zip archive")
	}

	var item types.FileItem
	if err := f.db.Where("file_group_id = ?", *first.EpubFileID).First(&item).Error; err != nil {
		t.Fatalf("load file item: %v", err)
	}
	if item.Status != types.FileStatusReady {
		t.Fatalf("item status = %q, want ready", item.Status)
	}
}

func TestSaveEpisode_UpdateReusesBucketKey(t *testing.T) {
	f := newEpisodeFixture(t)
	product := f.seedProduct(t, types.PriceTypeFree)
	now := time.Now()

	episode, err := f.svc.SaveEpisode(context.Background(), SaveEpisodeInput{
		ProductID: product.ID,
		Title:     "제목",
		Content:   "<p>초고</p>",
		PriceType: types.PriceTypeFree,
		OpenYn:    types.YnNo,
	}, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	groupID := *episode.EpubFileID

	updated, err := f.svc.SaveEpisode(context.Background(), SaveEpisodeInput{
		ProductID: product.ID,
		EpisodeID: &episode.ID,
		Title:     "제목",
		Content:   "<p>퇴고</p>",
		PriceType: types.PriceTypeFree,
		OpenYn:    types.YnNo,
	}, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.EpubFileID == nil || *updated.EpubFileID != groupID {
		t.Fatalf("update changed file group: %v", updated.EpubFileID)
	}
	var items int64
	if err := f.db.Model(&types.FileItem{}).Count(&items).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if items != 1 {
		t.Fatalf("file items = %d, want 1", items)
	}
	if f.bucket.uploadCount() != 2 {
		t.Fatalf("uploads = %d, want 2", f.bucket.uploadCount())
	}
}

func TestSaveEpisode_UploadFailureRollsBackCreate(t *testing.T) {
	f := newEpisodeFixture(t)
	product := f.seedProduct(t, types.PriceTypeFree)
	f.bucket.setFailPuts(true)

	_, err := f.svc.SaveEpisode(context.Background(), SaveEpisodeInput{
		ProductID: product.ID,
		Title:     "공개작",
		Content:   "<p>본문</p>",
		PriceType: types.PriceTypeFree,
		OpenYn:    types.YnYes,
	}, time.Now())
	if err == nil {
		t.Fatalf("expected upload failure")
	}

	var episodes int64
	if err := f.db.Model(&types.Episode{}).Count(&episodes).Error; err != nil {
		t.Fatalf("count episodes: %v", err)
	}
	if episodes != 0 {
		t.Fatalf("episode committed despite failed upload: %d rows", episodes)
	}
	var items int64
	if err := f.db.Model(&types.FileItem{}).Count(&items).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if items != 0 {
		t.Fatalf("file item committed despite failed upload: %d rows", items)
	}
}

func TestSaveEpisode_UploadFailureRollsBackUpdate(t *testing.T) {
	f := newEpisodeFixture(t)
	product := f.seedProduct(t, types.PriceTypeFree)
	now := time.Now()

	episode, err := f.svc.SaveEpisode(context.Background(), SaveEpisodeInput{
		ProductID: product.ID,
		Title:     "초고",
		Content:   "<p>초고</p>",
		PriceType: types.PriceTypeFree,
		OpenYn:    types.YnNo,
	}, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.bucket.setFailPuts(true)
	_, err = f.svc.SaveEpisode(context.Background(), SaveEpisodeInput{
		ProductID: product.ID,
		EpisodeID: &episode.ID,
		Title:     "퇴고",
		Content:   "<p>퇴고</p>",
		PriceType: types.PriceTypeFree,
		OpenYn:    types.YnYes,
	}, now.Add(time.Minute))
	if err == nil {
		t.Fatalf("expected upload failure")
	}

	var reloaded types.Episode
	if err := f.db.First(&reloaded, episode.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.OpenYn != types.YnNo {
		t.Fatalf("episode opened despite failed upload")
	}
	if reloaded.Title != "초고" {
		t.Fatalf("update committed despite failed upload: title = %q", reloaded.Title)
	}
}

func TestSaveEpisode_Validation(t *testing.T) {
	f := newEpisodeFixture(t)
	freeProduct := f.seedProduct(t, types.PriceTypeFree)
	now := time.Now()

	_, err := f.svc.SaveEpisode(context.Background(), SaveEpisodeInput{
		ProductID: freeProduct.ID,
		Title:     "",
		Content:   "<p>x</p>",
		PriceType: types.PriceTypeFree,
	}, now)
	wantCode(t, err, apierr.CodeInvalidEpisodeInfo)

	_, err = f.svc.SaveEpisode(context.Background(), SaveEpisodeInput{
		ProductID: freeProduct.ID,
		Title:     "유료화",
		Content:   "<p>x</p>",
		PriceType: types.PriceTypePaid,
	}, now)
	wantCode(t, err, apierr.CodeFreeProductCannotCreatePaidEp)

	longComment := make([]rune, maxAuthorCommentLen+1)
	for i := range longComment {
		longComment[i] = '가'
	}
	_, err = f.svc.SaveEpisode(context.Background(), SaveEpisodeInput{
		ProductID:     freeProduct.ID,
		Title:         "제목",
		Content:       "<p>x</p>",
		AuthorComment: string(longComment),
		PriceType:     types.PriceTypeFree,
	}, now)
	wantCode(t, err, apierr.CodeInvalidEpisodeInfo)

	_, err = f.svc.SaveEpisode(context.Background(), SaveEpisodeInput{
		ProductID: freeProduct.ID + 100,
		Title:     "제목",
		Content:   "<p>x</p>",
		PriceType: types.PriceTypeFree,
	}, now)
	wantCode(t, err, apierr.CodeNotFoundProduct)
}

func TestSaveEpisode_DuplicateTitleWindow(t *testing.T) {
	f := newEpisodeFixture(t)
	product := f.seedProduct(t, types.PriceTypeFree)
	now := time.Now()

	input := SaveEpisodeInput{
		ProductID: product.ID,
		Title:     "같은 제목",
		Content:   "<p>x</p>",
		PriceType: types.PriceTypeFree,
		OpenYn:    types.YnNo,
	}
	if _, err := f.svc.SaveEpisode(context.Background(), input, now); err != nil {
		t.Fatalf("first save: %v", err)
	}

	_, err := f.svc.SaveEpisode(context.Background(), input, now.Add(time.Second))
	wantCode(t, err, apierr.CodeDuplicateEpisodeCreation)

	if _, err := f.svc.SaveEpisode(context.Background(), input, now.Add(duplicateTitleWindow+time.Minute)); err != nil {
		t.Fatalf("save after window: %v", err)
	}
}

func TestSaveEpisode_DraftForcesClosed(t *testing.T) {
	f := newEpisodeFixture(t)
	product := f.seedProduct(t, types.PriceTypeFree)

	episode, err := f.svc.SaveEpisode(context.Background(), SaveEpisodeInput{
		ProductID: product.ID,
		Title:     "초안",
		Content:   "<p>x</p>",
		PriceType: types.PriceTypeFree,
		SaveYn:    types.YnYes,
		OpenYn:    types.YnYes,
	}, time.Now())
	if err != nil {
		t.Fatalf("SaveEpisode: %v", err)
	}
	if episode.OpenYn != types.YnNo {
		t.Fatalf("draft open_yn = %q, want N", episode.OpenYn)
	}
}

func TestToggleOpen_RunsPublishSideEffects(t *testing.T) {
	f := newEpisodeFixture(t)
	product := f.seedProduct(t, types.PriceTypeFree)
	now := time.Now()

	// A bookmarker with no pref row receives the fan-out.
	if err := f.db.Create(&types.Bookmark{UserID: 77, ProductID: product.ID, UseYn: types.YnYes}).Error; err != nil {
		t.Fatalf("seed bookmark: %v", err)
	}

	episode, err := f.svc.SaveEpisode(context.Background(), SaveEpisodeInput{
		ProductID: product.ID,
		Title:     "공개 예정",
		Content:   "<p>x</p>",
		PriceType: types.PriceTypeFree,
		OpenYn:    types.YnNo,
	}, now)
	if err != nil {
		t.Fatalf("SaveEpisode: %v", err)
	}

	opened, err := f.svc.ToggleOpen(context.Background(), episode.ID, types.YnYes, now)
	if err != nil {
		t.Fatalf("ToggleOpen: %v", err)
	}
	if opened.OpenYn != types.YnYes || opened.OpenChangedDate == nil {
		t.Fatalf("toggle result: open=%q changed=%v", opened.OpenYn, opened.OpenChangedDate)
	}

	var reloaded types.Product
	if err := f.db.First(&reloaded, product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if reloaded.LastEpisodeDate == nil {
		t.Fatalf("last_episode_date not stamped")
	}

	var notes []types.UserNotification
	if err := f.db.Where("user_id = ?", 77).Find(&notes).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].Content != chapterHeading(episode.EpisodeNo, episode.Title) {
		t.Fatalf("notification content = %q", notes[0].Content)
	}
}

func TestRunReservedPublish_HonorsManualOverride(t *testing.T) {
	f := newEpisodeFixture(t)
	product := f.seedProduct(t, types.PriceTypeFree)
	now := time.Now()
	reserveAt := now.Add(-time.Hour)

	due := &types.Episode{
		ProductID:          product.ID,
		EpisodeNo:          1,
		Title:              "예약 1",
		PriceType:          types.PriceTypeFree,
		OpenYn:             types.YnNo,
		PublishReserveYn:   types.YnYes,
		PublishReserveDate: &reserveAt,
		UseYn:              types.YnYes,
	}
	if err := f.db.Create(due).Error; err != nil {
		t.Fatalf("seed due: %v", err)
	}

	// Closed manually after the reservation was made: the override wins.
	overriddenAt := now.Add(-30 * time.Minute)
	overridden := &types.Episode{
		ProductID:          product.ID,
		EpisodeNo:          2,
		Title:              "예약 2",
		PriceType:          types.PriceTypeFree,
		OpenYn:             types.YnNo,
		PublishReserveYn:   types.YnYes,
		PublishReserveDate: &reserveAt,
		OpenChangedDate:    &overriddenAt,
		UseYn:              types.YnYes,
	}
	if err := f.db.Create(overridden).Error; err != nil {
		t.Fatalf("seed overridden: %v", err)
	}

	published, err := f.svc.RunReservedPublish(context.Background(), now)
	if err != nil {
		t.Fatalf("RunReservedPublish: %v", err)
	}
	if published != 1 {
		t.Fatalf("published = %d, want 1", published)
	}

	var reloaded types.Episode
	if err := f.db.First(&reloaded, due.ID).Error; err != nil {
		t.Fatalf("reload due: %v", err)
	}
	if reloaded.OpenYn != types.YnYes {
		t.Fatalf("due episode not opened")
	}
	var reloadedOverridden types.Episode
	if err := f.db.First(&reloadedOverridden, overridden.ID).Error; err != nil {
		t.Fatalf("reload overridden: %v", err)
	}
	if reloadedOverridden.OpenYn != types.YnNo {
		t.Fatalf("overridden episode was opened")
	}
}

func TestSweepPendingFiles_RemovesOnlyUnreferenced(t *testing.T) {
	f := newEpisodeFixture(t)
	product := f.seedProduct(t, types.PriceTypeFree)
	log := newTestLogger(t)
	files := repos.NewFileRepo(f.db, log)
	now := time.Now()

	// Orphan: pending, old, no episode points at it.
	_, orphan, err := files.CreateGroupWithItem(context.Background(), nil, types.FileGroupEpub, "epub-orphan.epub", "cdn/orphan")
	if err != nil {
		t.Fatalf("seed orphan: %v", err)
	}
	// Referenced: pending and old, but an episode owns the group.
	refGroup, _, err := files.CreateGroupWithItem(context.Background(), nil, types.FileGroupEpub, "epub-ref.epub", "cdn/ref")
	if err != nil {
		t.Fatalf("seed referenced: %v", err)
	}
	if err := f.db.Create(&types.Episode{
		ProductID:  product.ID,
		EpisodeNo:  1,
		Title:      "참조",
		PriceType:  types.PriceTypeFree,
		OpenYn:     types.YnNo,
		UseYn:      types.YnYes,
		EpubFileID: &refGroup.ID,
	}).Error; err != nil {
		t.Fatalf("seed episode: %v", err)
	}
	// Fresh: pending but too young to sweep.
	if _, _, err := files.CreateGroupWithItem(context.Background(), nil, types.FileGroupEpub, "epub-fresh.epub", "cdn/fresh"); err != nil {
		t.Fatalf("seed fresh: %v", err)
	}

	stale := now.Add(-2 * time.Hour)
	if err := f.db.Model(&types.FileItem{}).
		Where("bucket_key IN ?", []string{"epub-orphan.epub", "epub-ref.epub"}).
		UpdateColumn("created_date", stale).Error; err != nil {
		t.Fatalf("backdate items: %v", err)
	}

	removed, err := f.svc.SweepPendingFiles(context.Background(), now)
	if err != nil {
		t.Fatalf("SweepPendingFiles: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if len(f.bucket.deleted) != 1 || f.bucket.deleted[0] != "epub-orphan.epub" {
		t.Fatalf("deleted keys = %v", f.bucket.deleted)
	}
	var count int64
	if err := f.db.Model(&types.FileItem{}).Where("id = ?", orphan.ID).Count(&count).Error; err != nil {
		t.Fatalf("count orphan: %v", err)
	}
	if count != 0 {
		t.Fatalf("orphan item still present")
	}
}
