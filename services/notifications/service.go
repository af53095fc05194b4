package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"smartbull_go/config"
	"smartbull_go/database"
	"smartbull_go/models"
)

// queuedNotification is the minimal payload stored in the Redis queue. One
// item can fan out to many users; the DB rows remain the source of truth.
type queuedNotification struct {
	UserIDs   []uint    `json:"user_ids"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

const redisListKey = "notifications:queue"

// WSHub is the subset of the websocket hub the service pushes through.
type WSHub interface {
	BroadcastToUser(userID uint, message interface{})
}

// defaultHub lets services created in schedulers or background jobs reuse the
// hub wired at startup without threading it everywhere.
var defaultHub WSHub

func SetDefaultWSHub(h WSHub) {
	defaultHub = h
}

// Service creates notifications, queueing through Redis when enabled and
// falling back to direct DB inserts when not.
type Service struct {
	db       *gorm.DB
	redis    *redis.Client
	useRedis bool
	wsHub    WSHub
}

func NewService() *Service {
	return &Service{
		db:       database.GetDB(),
		redis:    database.GetRedisClient(),
		useRedis: config.AppConfig != nil && config.AppConfig.UseRedisNotifications && database.GetRedisClient() != nil,
		wsHub:    defaultHub,
	}
}

func (s *Service) SetWebSocketHub(hub WSHub) {
	s.wsHub = hub
}

// Notify stores a notification for the given users and pushes it over the
// websocket hub.
func (s *Service) Notify(userIDs []uint, title, message, notificationType string) error {
	if len(userIDs) == 0 {
		return errors.New("no user ids")
	}
	n := queuedNotification{
		UserIDs:   userIDs,
		Title:     title,
		Message:   message,
		Type:      notificationType,
		CreatedAt: time.Now().UTC(),
	}

	if s.useRedis {
		b, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if err = s.redis.RPush(context.Background(), redisListKey, b).Err(); err == nil {
			return nil
		}
		logrus.WithError(err).Warn("Redis notification queue failed, falling back to direct insert")
	}

	return s.createDirect(n)
}

// NotifyRoles resolves every active user holding one of the roles and
// notifies them. Errors are logged, not returned: notification delivery never
// blocks the operation that triggered it.
func (s *Service) NotifyRoles(roles []string, title, message, notificationType string) {
	var users []models.User
	if err := s.db.Where("role IN ? AND active = ?", roles, true).Find(&users).Error; err != nil {
		logrus.WithError(err).Error("Failed to resolve notification recipients")
		return
	}
	if len(users) == 0 {
		return
	}
	userIDs := make([]uint, 0, len(users))
	for _, u := range users {
		userIDs = append(userIDs, u.ID)
	}
	if err := s.Notify(userIDs, title, message, notificationType); err != nil {
		logrus.WithError(err).Error("Failed to create notifications")
	}
}

func (s *Service) createDirect(n queuedNotification) error {
	if len(n.UserIDs) == 0 {
		return nil
	}
	notifs := make([]models.Notification, 0, len(n.UserIDs))
	for _, uid := range n.UserIDs {
		notifs = append(notifs, models.Notification{
			UserID:  uid,
			Title:   n.Title,
			Message: n.Message,
			Type:    n.Type,
			Read:    false,
		})
	}

	if err := s.db.Create(&notifs).Error; err != nil {
		return err
	}

	if s.wsHub != nil {
		for _, notif := range notifs {
			s.wsHub.BroadcastToUser(notif.UserID, map[string]interface{}{
				"type": "notification",
				"data": notif,
			})
		}
	}
	return nil
}

// StartWorker polls the Redis queue and flushes items to the database. No-op
// when the queue is disabled.
func (s *Service) StartWorker(stop <-chan struct{}) {
	if !s.useRedis {
		logrus.Info("Redis notification queue disabled; worker not started")
		return
	}
	go func() {
		logrus.Info("Redis notification worker started")
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		ctx := context.Background()
		for {
			select {
			case <-stop:
				logrus.Info("Redis notification worker stopping")
				return
			case <-ticker.C:
				s.flushBatch(ctx, 200)
			}
		}
	}()
}

func (s *Service) flushBatch(ctx context.Context, batchSize int) {
	if s.redis == nil {
		return
	}
	for i := 0; i < 5; i++ {
		vals, err := s.redis.LRange(ctx, redisListKey, 0, int64(batchSize-1)).Result()
		if err != nil || len(vals) == 0 {
			return
		}
		if err = s.redis.LTrim(ctx, redisListKey, int64(len(vals)), -1).Err(); err != nil {
			logrus.WithError(err).Warn("Notification queue trim failed")
		}
		for _, raw := range vals {
			var q queuedNotification
			if err := json.Unmarshal([]byte(raw), &q); err != nil {
				continue
			}
			if err := s.createDirect(q); err != nil {
				logrus.WithError(err).Error("Notification DB insert failed")
			}
		}
		if len(vals) < batchSize {
			return
		}
	}
}
