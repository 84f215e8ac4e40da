package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
	"github.com/NickZhezl/LiveCodeInno/internal/dto"
	"github.com/NickZhezl/LiveCodeInno/internal/repository"

	"github.com/sirupsen/logrus"
)

// 文档 hash 的字段名
const (
	fieldCode     = "code"
	fieldLanguage = "language"
	fieldVersion  = "version"
	fieldTimer    = "timer"
	fieldLastRun  = "lastRun"
)

// RedisStateRepository 是 StateRepository 接口的 Redis 实现。
// 每个房间的文档存在一个 hash 里，版本号是其中的一个字段，
// 随每次 code/language 写入在同一个 pipeline 中原子递增。
type RedisStateRepository struct {
	client *redis.Client
	// Redis key 的前缀，方便管理
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "lci:" // 默认前缀 "lci:" (livecode)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---
func (r *RedisStateRepository) roomDocKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:doc", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomCursorsKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:cursors", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomRunSeqKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:runseq", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomSaveSeqKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:saveseq", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomPubSubChannel(roomID string) string {
	return fmt.Sprintf("%sroom:%s:events", r.keyPrefix, roomID)
}

// --- Room Document ---

// GetRoomDoc 获取房间当前的完整文档状态 (来自 Redis Hash)
func (r *RedisStateRepository) GetRoomDoc(ctx context.Context, roomID string) (domain.RoomDoc, error) {
	key := r.roomDocKey(roomID)
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.RoomDoc{}, fmt.Errorf("redis: failed to get room doc for room %s from %s: %w", roomID, key, err)
	}
	if len(fields) == 0 {
		return domain.RoomDoc{}, repository.ErrNotFound
	}

	doc := domain.RoomDoc{
		Code:     fields[fieldCode],
		Language: fields[fieldLanguage],
		Timer:    domain.NewIdleTimer(),
	}
	if versionStr, ok := fields[fieldVersion]; ok {
		version, parseErr := strconv.ParseUint(versionStr, 10, 64)
		if parseErr != nil {
			return domain.RoomDoc{}, fmt.Errorf("redis: failed to parse version '%s' for room %s: %w", versionStr, roomID, parseErr)
		}
		doc.Version = version
	}
	if timerStr, ok := fields[fieldTimer]; ok && timerStr != "" {
		if err := json.Unmarshal([]byte(timerStr), &doc.Timer); err != nil {
			logrus.Warnf("redis: failed to unmarshal timer for room %s: %v, data: %s", roomID, err, timerStr)
			doc.Timer = domain.NewIdleTimer()
		}
	}
	if runStr, ok := fields[fieldLastRun]; ok && runStr != "" {
		var run domain.LastRun
		if err := json.Unmarshal([]byte(runStr), &run); err != nil {
			logrus.Warnf("redis: failed to unmarshal lastRun for room %s: %v, data: %s", roomID, err, runStr)
		} else {
			doc.LastRun = &run
		}
	}
	return doc, nil
}

// SeedRoomDoc 仅在文档不存在时写入初始状态，幂等。
func (r *RedisStateRepository) SeedRoomDoc(ctx context.Context, roomID string, doc domain.RoomDoc) error {
	key := r.roomDocKey(roomID)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis: failed to check room doc existence for room %s on %s: %w", roomID, key, err)
	}
	if exists > 0 {
		return nil
	}
	timerBytes, err := json.Marshal(doc.Timer)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal timer for seed (room %s): %w", roomID, err)
	}
	// HSetNX 只在 code 字段不存在时写入，用它挡并发初始化；
	// 剩余字段在赢得竞争后补齐。
	won, err := r.client.HSetNX(ctx, key, fieldCode, doc.Code).Result()
	if err != nil {
		return fmt.Errorf("redis: failed to seed room doc for room %s on %s: %w", roomID, key, err)
	}
	if !won {
		return nil
	}
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, fieldLanguage, doc.Language)
	pipe.HSet(ctx, key, fieldVersion, strconv.FormatUint(doc.Version, 10))
	pipe.HSet(ctx, key, fieldTimer, string(timerBytes))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to seed room doc fields for room %s on %s: %w", roomID, key, err)
	}
	return nil
}

// SetCode 覆盖共享缓冲区并原子递增文档版本号，返回新版本。
func (r *RedisStateRepository) SetCode(ctx context.Context, roomID string, code string) (uint64, error) {
	key := r.roomDocKey(roomID)
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, fieldCode, code)
	incrCmd := pipe.HIncrBy(ctx, key, fieldVersion, 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: failed to set code for room %s on %s: %w", roomID, key, err)
	}
	return uint64(incrCmd.Val()), nil
}

// SetLanguage 切换语言；seedCode 非空时同时覆盖缓冲区。返回新版本号。
func (r *RedisStateRepository) SetLanguage(ctx context.Context, roomID string, language, seedCode string) (uint64, error) {
	key := r.roomDocKey(roomID)
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, fieldLanguage, language)
	if seedCode != "" {
		pipe.HSet(ctx, key, fieldCode, seedCode)
	}
	incrCmd := pipe.HIncrBy(ctx, key, fieldVersion, 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: failed to set language for room %s on %s: %w", roomID, key, err)
	}
	return uint64(incrCmd.Val()), nil
}

// SetTimer 覆盖计时器状态。
func (r *RedisStateRepository) SetTimer(ctx context.Context, roomID string, timer domain.TimerState) error {
	key := r.roomDocKey(roomID)
	timerBytes, err := json.Marshal(timer)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal timer for room %s: %w", roomID, err)
	}
	if err := r.client.HSet(ctx, key, fieldTimer, string(timerBytes)).Err(); err != nil {
		return fmt.Errorf("redis: failed to set timer for room %s on %s: %w", roomID, key, err)
	}
	return nil
}

// SetLastRun 覆盖最近一次运行结果。
func (r *RedisStateRepository) SetLastRun(ctx context.Context, roomID string, run domain.LastRun) error {
	key := r.roomDocKey(roomID)
	runBytes, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal lastRun for room %s: %w", roomID, err)
	}
	if err := r.client.HSet(ctx, key, fieldLastRun, string(runBytes)).Err(); err != nil {
		return fmt.Errorf("redis: failed to set lastRun for room %s on %s: %w", roomID, key, err)
	}
	return nil
}

// --- Counters ---

// NextRunSeq 原子递增房间的运行序号并返回新值。
func (r *RedisStateRepository) NextRunSeq(ctx context.Context, roomID string) (int64, error) {
	key := r.roomRunSeqKey(roomID)
	seq, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to increment run seq for room %s on key %s: %w", roomID, key, err)
	}
	return seq, nil
}

// LatestRunSeq 返回房间当前的运行序号，未运行过时为 0。
func (r *RedisStateRepository) LatestRunSeq(ctx context.Context, roomID string) (int64, error) {
	key := r.roomRunSeqKey(roomID)
	seqStr, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil // Key 不存在视为 0
		}
		return 0, fmt.Errorf("redis: failed to get run seq for room %s from %s: %w", roomID, key, err)
	}
	seq, parseErr := strconv.ParseInt(seqStr, 10, 64)
	if parseErr != nil {
		return 0, fmt.Errorf("redis: failed to parse run seq '%s' for room %s: %w", seqStr, roomID, parseErr)
	}
	return seq, nil
}

// NextSaveSeq 原子递增房间的存档序号并返回新值。
func (r *RedisStateRepository) NextSaveSeq(ctx context.Context, roomID string) (int64, error) {
	key := r.roomSaveSeqKey(roomID)
	seq, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to increment save seq for room %s on key %s: %w", roomID, key, err)
	}
	return seq, nil
}

// --- Cursors ---

// SetCursor 写入或更新一个用户的光标 (按用户名一人一条)。
func (r *RedisStateRepository) SetCursor(ctx context.Context, roomID string, cursor domain.Cursor) error {
	key := r.roomCursorsKey(roomID)
	cursorBytes, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal cursor for room %s (user %s): %w", roomID, cursor.UserName, err)
	}
	if err := r.client.HSet(ctx, key, cursor.UserName, string(cursorBytes)).Err(); err != nil {
		return fmt.Errorf("redis: failed to set cursor for room %s on %s: %w", roomID, key, err)
	}
	return nil
}

// ListCursors 返回房间内的全部光标，含已过期的。
func (r *RedisStateRepository) ListCursors(ctx context.Context, roomID string) ([]domain.Cursor, error) {
	key := r.roomCursorsKey(roomID)
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to list cursors for room %s from %s: %w", roomID, key, err)
	}
	cursors := make([]domain.Cursor, 0, len(fields))
	for userName, cursorStr := range fields {
		var cursor domain.Cursor
		if err := json.Unmarshal([]byte(cursorStr), &cursor); err != nil {
			logrus.Warnf("redis: failed to unmarshal cursor for room %s user %s: %v, data: %s", roomID, userName, err, cursorStr)
			continue
		}
		cursors = append(cursors, cursor)
	}
	return cursors, nil
}

// RemoveCursor 删除一个用户的光标。
func (r *RedisStateRepository) RemoveCursor(ctx context.Context, roomID string, userName string) error {
	key := r.roomCursorsKey(roomID)
	if err := r.client.HDel(ctx, key, userName).Err(); err != nil {
		return fmt.Errorf("redis: failed to remove cursor for room %s user %s: %w", roomID, userName, err)
	}
	return nil
}

// PurgeStaleCursors 扫描所有房间的光标 key，删除 olderThan 之前未更新的条目。
func (r *RedisStateRepository) PurgeStaleCursors(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	pattern := fmt.Sprintf("%sroom:*:cursors", r.keyPrefix)
	purged := 0

	var scanCursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, scanCursor, pattern, 100).Result()
		if err != nil {
			return purged, fmt.Errorf("redis: scan failed for stale cursor purge (pattern %s): %w", pattern, err)
		}
		for _, key := range keys {
			fields, err := r.client.HGetAll(ctx, key).Result()
			if err != nil {
				logrus.WithError(err).Warnf("redis: failed to read cursors from %s during purge", key)
				continue
			}
			var stale []string
			for userName, cursorStr := range fields {
				var cursor domain.Cursor
				if err := json.Unmarshal([]byte(cursorStr), &cursor); err != nil {
					stale = append(stale, userName) // 解析不了的也清掉
					continue
				}
				if cursor.UpdatedAt < cutoff {
					stale = append(stale, userName)
				}
			}
			if len(stale) > 0 {
				if err := r.client.HDel(ctx, key, stale...).Err(); err != nil {
					logrus.WithError(err).Warnf("redis: failed to delete stale cursors from %s", key)
					continue
				}
				purged += len(stale)
			}
		}
		scanCursor = next
		if scanCursor == 0 {
			break
		}
	}
	return purged, nil
}

// --- Rate Limiting ---

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	// 使用 Pipeline 减少网络往返
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, duration)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	return count > int64(limit), nil
}

// --- PubSub ---

// PublishEvent 将事件发布到房间频道，扇出到所有实例。
func (r *RedisStateRepository) PublishEvent(ctx context.Context, event dto.Event) error {
	channel := r.roomPubSubChannel(event.RoomID)
	payloadBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal event for publish (room %s, type %s): %w", event.RoomID, event.Message.Type, err)
	}
	payload := string(payloadBytes)
	err = r.client.Publish(ctx, channel, payload).Err()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"msg_type":     event.Message.Type,
			"room_id":      event.RoomID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish event to channel %s: %w", channel, err)
	}
	return nil
}

// SubscribeRoom 订阅房间频道，返回事件流和取消函数。
// 频道关闭或 ctx 取消时事件流会被关闭。
func (r *RedisStateRepository) SubscribeRoom(ctx context.Context, roomID string) (<-chan dto.Event, func() error, error) {
	channel := r.roomPubSubChannel(roomID)
	pubsub := r.client.Subscribe(ctx, channel)
	// 确认订阅成功后再返回
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis: failed to subscribe to channel %s: %w", channel, err)
	}

	events := make(chan dto.Event, 64)
	go func() {
		defer close(events)
		for msg := range pubsub.Channel() {
			var event dto.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logrus.Warnf("redis: failed to unmarshal event from channel %s: %v", channel, err)
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, pubsub.Close, nil
}
