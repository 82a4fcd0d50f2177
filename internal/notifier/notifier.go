package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/session"
)

// Notifier 基于 redis 发布/订阅实现变更通知
// 通道按小组划分，消息不携带负载，订阅方收到后整体重载，
// 语义是"范围内有东西变了"，至少送达一次
type Notifier struct {
	client           *redis.Client
	operationTimeout time.Duration
}

func New(client *redis.Client, operationTimeoutSeconds int) *Notifier {
	return &Notifier{
		client:           client,
		operationTimeout: time.Duration(operationTimeoutSeconds) * time.Second,
	}
}

func channelFor(teamID int64) string {
	return fmt.Sprintf("sprint_board:schedule_changes:%d", teamID)
}

// Publish 广播某个小组的排期发生了变化
func (n *Notifier) Publish(ctx context.Context, teamID int64) error {
	ctx, cancel := context.WithTimeout(ctx, n.operationTimeout)
	defer cancel()

	return n.client.Publish(ctx, channelFor(teamID), "changed").Err()
}

// Subscribe 订阅某个小组的变更通知，实现 session.Subscriber
// redis 通道是按小组划分的，日期范围参数在这里用不上，
// 但语义上依然成立：范围内的变化一定会触发通知
func (n *Notifier) Subscribe(teamID int64, start time.Time, end time.Time, onChange func()) (func(), error) {
	pubsub := n.client.Subscribe(context.Background(), channelFor(teamID))

	// 确认订阅真的建立了再返回
	ctx, cancel := context.WithTimeout(context.Background(), n.operationTimeout)
	defer cancel()
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	go func() {
		for range pubsub.Channel() {
			onChange()
		}
	}()

	slog.Info("已建立变更订阅", "team_id", teamID, "start", domain.DateKey(start), "end", domain.DateKey(end))

	return func() {
		_ = pubsub.Close()
	}, nil
}

// PublishingStore 在写入确认之后广播变更通知
// 引擎本身不知道通知的存在，用这个装饰器把两件事拼起来
type PublishingStore struct {
	session.Store
	notifier *Notifier
}

func WrapStore(store session.Store, notifier *Notifier) *PublishingStore {
	return &PublishingStore{
		Store:    store,
		notifier: notifier,
	}
}

func (s *PublishingStore) WriteEntry(ctx context.Context, teamID int64, memberID int64, day time.Time, value domain.StatusCode, reason string) error {
	if err := s.Store.WriteEntry(ctx, teamID, memberID, day, value, reason); err != nil {
		return err
	}

	// 通知发不出去不算写入失败，订阅方最终会通过别的通知或重载追上
	if err := s.notifier.Publish(ctx, teamID); err != nil {
		slog.Warn("变更通知发布失败", "team_id", teamID, "error", err)
	}

	return nil
}
