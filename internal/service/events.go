package service

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/google/uuid"
)

// Broadcaster 把事件推送给实时订阅者（websocket hub）
type Broadcaster interface {
	Broadcast(entry *model.Event)
}

type EventRepo interface {
	Insert(ctx context.Context, entry *model.Event) error
	List(ctx context.Context, user string, limit int) ([]*model.Event, error)
}

// EventService 异步落盘可观测事件：jsonl 文件 + 可选持久化仓库 + 实时推送。
// 主流程只写 channel，事件管道拥塞时丢弃并告警，绝不阻塞结算。
type EventService struct {
	logChan chan *model.Event
	logFile *os.File
	buffer  *eventBuffer
	repo    EventRepo
	hub     Broadcaster
	done    chan struct{}
}

func NewEventService(logDir string, repo EventRepo, hub Broadcaster) (*EventService, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	filename := filepath.Join(logDir, "events-"+time.Now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	svc := &EventService{
		logChan: make(chan *model.Event, 1000),
		logFile: f,
		buffer:  newEventBuffer(1000),
		repo:    repo,
		hub:     hub,
		done:    make(chan struct{}),
	}

	go svc.process()

	return svc, nil
}

// Emit 构造并投递一条事件。返回投递的事件以便调用方补充上下文前使用。
func (s *EventService) Emit(entry *model.Event) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if s.buffer != nil {
		s.buffer.Add(entry)
	}
	select {
	case s.logChan <- entry:
	default:
		log.Println("event buffer full, dropping entry", entry.Kind)
	}
}

func (s *EventService) List(ctx context.Context, user string, limit int) ([]*model.Event, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, user, limit)
		if err == nil {
			return records, nil
		}
	}
	if s.buffer == nil {
		return nil, nil
	}
	return s.buffer.List(user, limit), nil
}

func (s *EventService) process() {
	defer close(s.done)
	encoder := json.NewEncoder(s.logFile)
	for entry := range s.logChan {
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), entry); err != nil {
				log.Printf("failed to persist event: %v", err)
			}
		}
		if err := encoder.Encode(entry); err != nil {
			log.Printf("failed to write event log: %v", err)
		}
		if s.hub != nil {
			s.hub.Broadcast(entry)
		}
	}
}

func (s *EventService) Close() {
	close(s.logChan)
	<-s.done
	s.logFile.Close()
}

// eventBuffer 环形缓冲，作为没有持久化后端时的查询兜底
type eventBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.Event
	nextIndex int
}

func newEventBuffer(maxSize int) *eventBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &eventBuffer{
		maxSize: maxSize,
		records: make([]*model.Event, 0, maxSize),
	}
}

func (b *eventBuffer) Add(entry *model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, entry)
		return
	}
	b.records[b.nextIndex] = entry
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *eventBuffer) List(user string, limit int) []*model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.Event, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		entry := b.records[idx]
		if entry == nil {
			continue
		}
		if user != "" && entry.User != user {
			continue
		}
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}
