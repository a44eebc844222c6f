package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/messagelog"
	"github.com/spec-kit/support-chat/internal/repository/memory"
	"github.com/spec-kit/support-chat/internal/storage"
)

const (
	ownerID    = "owner-1"
	strangerID = "user-2"
	agentID    = "agent-1"
	leadID     = "lead-1"
	adminID    = "admin-1"
)

type fakeObjectStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	deleted    []string
	putErr     error
	presignErr error
	deleteErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) Put(_ context.Context, body []byte, meta storage.ObjectMeta) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	key := storage.ObjectKey(meta)
	f.objects[key] = append([]byte(nil), body...)
	return key, nil
}

func (f *fakeObjectStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presignErr != nil {
		return "", f.presignErr
	}
	if _, ok := f.objects[key]; !ok {
		return "", errors.New("no such key")
	}
	return fmt.Sprintf("https://objects.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStore) Health(context.Context) error { return nil }

func (f *fakeObjectStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeMessageLog struct {
	mu        sync.Mutex
	seq       int
	records   map[string][]messagelog.Entry
	deleted   []string
	appendErr error
	gate      chan struct{}
}

func newFakeMessageLog() *fakeMessageLog {
	return &fakeMessageLog{records: map[string][]messagelog.Entry{}}
}

func (f *fakeMessageLog) Append(ctx context.Context, chatID string, rec messagelog.Record) (string, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return "", f.appendErr
	}
	f.seq++
	ref := fmt.Sprintf("ref-%d", f.seq)
	f.records[chatID] = append(f.records[chatID], messagelog.Entry{Ref: ref, Record: rec})
	return ref, nil
}

func (f *fakeMessageLog) QueryByThread(_ context.Context, chatID string, limit int) ([]messagelog.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.records[chatID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]messagelog.Entry(nil), entries...), nil
}

func (f *fakeMessageLog) DeleteByThread(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, chatID)
	delete(f.records, chatID)
	return nil
}

func (f *fakeMessageLog) setAppendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendErr = err
}

// hold makes appends wait until release is called or their context expires.
func (f *fakeMessageLog) hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

func (f *fakeMessageLog) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

type recordingDispatcher struct {
	events.Dispatcher
	mu        sync.Mutex
	published []events.Event
}

func (r *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	r.published = append(r.published, event)
	r.mu.Unlock()
	return r.Dispatcher.Publish(ctx, event)
}

func (r *recordingDispatcher) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.published))
	for _, e := range r.published {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc        *ChatService
	chats      *memory.ChatStore
	directory  *memory.Directory
	objects    *fakeObjectStore
	log        *fakeMessageLog
	dispatcher *recordingDispatcher
	replicator *DualWriteCoordinator
}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		MaxSubjectLength: 255,
		MaxContentLength: 5000,
		PreviewLength:    200,
		DefaultPageSize:  50,
		MaxPageSize:      200,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	chats := memory.NewChatStore()
	directory := memory.NewDirectory(
		domain.Participant{ID: ownerID, DisplayName: "Olivia", Email: "olivia@example.com", Role: domain.RoleUser},
		domain.Participant{ID: strangerID, DisplayName: "Sid", Role: domain.RoleUser},
		domain.Participant{ID: agentID, DisplayName: "Ava", Role: domain.RoleAgent},
		domain.Participant{ID: leadID, DisplayName: "Lee", Role: domain.RoleTeamLead},
		domain.Participant{ID: adminID, DisplayName: "Ada", Role: domain.RoleAdmin},
	)
	objects := newFakeObjectStore()
	log := newFakeMessageLog()
	dispatcher := &recordingDispatcher{Dispatcher: events.NewInMemoryDispatcher(logger)}

	attachments := NewAttachmentService(objects, config.StorageConfig{
		MaxUploadBytes:    10 * 1024 * 1024,
		PresignTTLSeconds: 900,
		PresignTimeoutMs:  500,
	}, nil, logger)
	replicator := NewDualWriteCoordinator(chats, log, time.Second, nil, logger)
	t.Cleanup(replicator.Wait)

	svc := NewChatService(ChatDependencies{
		ChatRepo:    chats,
		Directory:   directory,
		Attachments: attachments,
		Replicator:  replicator,
		MessageLog:  log,
		Dispatcher:  dispatcher,
		Limits:      testChatConfig(),
		Logger:      logger,
	})
	return &fixture{
		svc:        svc,
		chats:      chats,
		directory:  directory,
		objects:    objects,
		log:        log,
		dispatcher: dispatcher,
		replicator: replicator,
	}
}

func (f *fixture) mustCreate(t *testing.T) *domain.Chat {
	t.Helper()
	chat, _, err := f.svc.CreateChat(context.Background(), ownerID, CreateChatInput{
		Subject: "Billing issue",
		Content: "Can't redeem voucher",
	})
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	return chat
}

func (f *fixture) reload(t *testing.T, chatID string) *domain.Chat {
	t.Helper()
	chat, err := f.chats.GetChat(context.Background(), chatID)
	if err != nil {
		t.Fatalf("reload chat: %v", err)
	}
	return chat
}

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
	elfBytes = append([]byte("\x7fELF\x02\x01\x01\x00"), make([]byte, 64)...)
)
