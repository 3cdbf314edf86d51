package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"assessment-service/internal/domain"
)

// Store persists attempt records, overrides, requests and event configs in
// Redis. Layout:
//
//	attempts:seq                    INCR counter for record IDs
//	attempts:record:{id}            JSON AttemptRecord
//	attempts:records                ZSET of record IDs scored by ID
//	attempts:pair:{pair}            SET of record IDs for the pair
//	attempts:overrides              HASH {pair} -> allowed
//
// {pair} is {len(user)}:{user}:{lesson}.
//	attempts:requests               HASH {id} -> JSON AttemptRequest
//	assessment:configs              HASH {name} -> JSON EventConfig
//	assessment:config:active        STRING active config name
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

const (
	seqKey       = "attempts:seq"
	recordsKey   = "attempts:records"
	overridesKey = "attempts:overrides"
	requestsKey  = "attempts:requests"
	configsKey   = "assessment:configs"
	activeKey    = "assessment:config:active"
)

func recordKey(id int64) string {
	return "attempts:record:" + strconv.FormatInt(id, 10)
}

func pairKey(userID, lessonID string) string {
	return "attempts:pair:" + pairField(userID, lessonID)
}

// pairField length-prefixes the user ID so IDs containing ':' cannot collide.
func pairField(userID, lessonID string) string {
	return strconv.Itoa(len(userID)) + ":" + userID + ":" + lessonID
}

func (s *Store) AppendAttemptRecord(ctx context.Context, rec domain.AttemptRecord) (domain.AttemptRecord, error) {
	id, err := s.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("next record id: %w", err)
	}
	rec.ID = id
	payload, err := json.Marshal(rec)
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey(id), payload, 0)
		pipe.ZAdd(ctx, recordsKey, redis.Z{Score: float64(id), Member: id})
		pipe.SAdd(ctx, pairKey(rec.UserID, rec.LessonID), id)
		return nil
	})
	if err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("write record %d: %w", id, err)
	}
	return rec, nil
}

func (s *Store) ListAttemptRecords(ctx context.Context, filter domain.AttemptFilter) ([]domain.AttemptRecord, error) {
	var ids []string
	var err error
	if filter.UserID != "" && filter.LessonID != "" {
		ids, err = s.client.SMembers(ctx, pairKey(filter.UserID, filter.LessonID)).Result()
	} else {
		ids, err = s.client.ZRange(ctx, recordsKey, 0, -1).Result()
	}
	if err != nil {
		return nil, err
	}
	out := make([]domain.AttemptRecord, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "attempts:record:" + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec domain.AttemptRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, err
		}
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if filter.LessonID != "" && rec.LessonID != filter.LessonID {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AttachComment rewrites the record under WATCH so a concurrent comment is
// never lost.
func (s *Store) AttachComment(ctx context.Context, id int64, comment string) (domain.AttemptRecord, error) {
	key := recordKey(id)
	var rec domain.AttemptRecord
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		rec.Comment = comment
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	return rec, nil
}

func (s *Store) CountAttempts(ctx context.Context, userID, lessonID string) (int, error) {
	n, err := s.client.SCard(ctx, pairKey(userID, lessonID)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) GetOverride(ctx context.Context, userID, lessonID string) (int, bool, error) {
	allowed, err := s.client.HGet(ctx, overridesKey, pairField(userID, lessonID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return allowed, true, nil
}

func (s *Store) SetOverride(ctx context.Context, override domain.AttemptOverride) error {
	return s.client.HSet(ctx, overridesKey, pairField(override.UserID, override.LessonID), override.Allowed).Err()
}

func (s *Store) CreateRequest(ctx context.Context, req domain.AttemptRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, requestsKey, req.ID, payload).Err()
}

func (s *Store) GetRequest(ctx context.Context, id string) (domain.AttemptRequest, error) {
	raw, err := s.client.HGet(ctx, requestsKey, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AttemptRequest{}, domain.ErrRequestNotFound
	}
	if err != nil {
		return domain.AttemptRequest{}, err
	}
	var req domain.AttemptRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return domain.AttemptRequest{}, err
	}
	return req, nil
}

func (s *Store) ListRequests(ctx context.Context, status domain.RequestStatus) ([]domain.AttemptRequest, error) {
	values, err := s.client.HVals(ctx, requestsKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.AttemptRequest, 0, len(values))
	for _, raw := range values {
		var req domain.AttemptRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return nil, err
		}
		if status == "" || req.Status == status {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateRequest(ctx context.Context, req domain.AttemptRequest) error {
	exists, err := s.client.HExists(ctx, requestsKey, req.ID).Result()
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrRequestNotFound
	}
	return s.CreateRequest(ctx, req)
}

func (s *Store) SaveEventConfig(ctx context.Context, cfg domain.EventConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, configsKey, cfg.Name, payload).Err()
}

func (s *Store) GetEventConfig(ctx context.Context, name string) (domain.EventConfig, error) {
	raw, err := s.client.HGet(ctx, configsKey, name).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.EventConfig{}, domain.ErrConfigNotFound
	}
	if err != nil {
		return domain.EventConfig{}, err
	}
	var cfg domain.EventConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.EventConfig{}, err
	}
	return cfg, nil
}

func (s *Store) ListEventConfigs(ctx context.Context) ([]domain.EventConfig, error) {
	values, err := s.client.HVals(ctx, configsKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.EventConfig, 0, len(values))
	for _, raw := range values {
		var cfg domain.EventConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ActivateEventConfig(ctx context.Context, name string) error {
	exists, err := s.client.HExists(ctx, configsKey, name).Result()
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrConfigNotFound
	}
	return s.client.Set(ctx, activeKey, name, 0).Err()
}

func (s *Store) ActiveEventConfig(ctx context.Context) (domain.EventConfig, error) {
	name, err := s.client.Get(ctx, activeKey).Result()
	if errors.Is(err, redis.Nil) {
		return domain.EventConfig{}, domain.ErrConfigNotFound
	}
	if err != nil {
		return domain.EventConfig{}, err
	}
	return s.GetEventConfig(ctx, name)
}
