package services

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/anonto42/writer/backend/internal/repositories"
	"github.com/anonto42/writer/backend/internal/testutil"
	"github.com/anonto42/writer/backend/pkg/logger"
	"github.com/anonto42/writer/backend/pkg/metrics"
	"github.com/anonto42/writer/backend/pkg/storage"
	"gorm.io/gorm"
)

type memoryImages struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func (m *memoryImages) Upload(_ context.Context, folder, filename string, r io.Reader) (string, error) {
	name, _, err := storage.ObjectName(folder, filename)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploads == nil {
		m.uploads = map[string][]byte{}
	}
	m.uploads[name] = data
	return "https://images.test/" + name, nil
}

type sentMail struct {
	To, Subject, Body string
}

type recordingMailer struct {
	enabled bool
	sent    []sentMail
}

func (m *recordingMailer) Enabled() bool { return m.enabled }

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

type fixture struct {
	db       *gorm.DB
	store    *repositories.Store
	metrics  *metrics.Metrics
	images   *memoryImages
	mailer   *recordingMailer
	tokens   *TokenIssuer
	feed     *FeedService
	graph    *GraphService
	engage   *EngagementService
	notes    *NotificationService
	messages *MessagingService
	posts    *PostService
	identity *IdentityService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	store := repositories.NewStore(db)
	m := metrics.New()
	images := &memoryImages{}
	mail := &recordingMailer{enabled: true}
	tokens := NewTokenIssuer("test-secret")

	return &fixture{
		db:       db,
		store:    store,
		metrics:  m,
		images:   images,
		mailer:   mail,
		tokens:   tokens,
		feed:     NewFeedService(store),
		graph:    NewGraphService(store, m),
		engage:   NewEngagementService(store, m),
		notes:    NewNotificationService(store),
		messages: NewMessagingService(store, images, m, MessagingConfig{AllowSharedOnly: true}),
		posts:    NewPostService(store, images),
		identity: NewIdentityService(store, tokens, mail, images, m, logger.Discard(), "http://localhost:8080"),
	}
}
