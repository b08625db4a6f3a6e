// Package kafkaconsumer classifies record batches published by the catalogue
// harvester.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/knownlayers/internal/core/model"
	obs "github.com/mohammed-shakir/knownlayers/internal/core/observability"
	"github.com/mohammed-shakir/knownlayers/internal/feed/membership"
	mylog "github.com/mohammed-shakir/knownlayers/internal/logger"
	"github.com/mohammed-shakir/knownlayers/internal/registry"
)

type Classifier interface {
	Classify(ctx context.Context, source string, records []model.CSWRecord) (registry.Classification, error)
	Invalidate(ctx context.Context, recordIDs ...string) error
	Registry() *registry.Registry
}

// Publisher receives one membership event per classified record.
type Publisher interface {
	Publish(ev membership.Event) bool
}

type Option func(*Consumer)

func WithPublisher(p Publisher) Option {
	return func(c *Consumer) { c.pub = p }
}

type Consumer struct {
	cfg      Config
	logger   *slog.Logger
	classify Classifier
	pub      Publisher
	seen     *revisionDedupe
	now      func() time.Time
}

func New(cfg Config, logger *slog.Logger, c Classifier, opts ...Option) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	cons := &Consumer{
		cfg:      cfg,
		logger:   logger,
		classify: c,
		seen:     newRevisionDedupe(cfg.DedupeSize),
		now:      time.Now,
	}
	for _, o := range opts {
		o(cons)
	}
	return cons
}

// Start consumes until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.classify == nil {
		return errors.New("kafkaconsumer: missing classifier")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}
	c.logger.Info("record feed consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
			obs.IncFeedError("consume")
			c.logger.Error("kafka consume error", "err", err)
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			c.logger.Info("record feed consumer shutting down")
			return nil
		}
	}
}

// ProcessOne handles one batch message. Messages that can never succeed
// are logged and dropped; cache failures are returned so the message is
// redelivered.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var b Batch
	if err := json.Unmarshal(msg.Value, &b); err != nil {
		c.drop(ctx, msg, "decode", err)
		return nil
	}
	if err := b.Validate(); err != nil {
		c.drop(ctx, msg, "validate", err)
		return nil
	}
	if b.BatchID == "" {
		b.BatchID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	ctx = mylog.WithBatchID(ctx, b.BatchID)

	fresh := make([]model.CSWRecord, 0, len(b.Records))
	for _, rec := range b.Records {
		if !c.seen.isNewer(rec.ID, rec.Revision) {
			obs.IncFeedStale()
			continue
		}
		fresh = append(fresh, rec)
	}
	if len(fresh) == 0 {
		c.logger.DebugContext(ctx, "batch has no fresh records", "records", len(b.Records))
		return nil
	}

	ids := make([]string, len(fresh))
	for i, rec := range fresh {
		ids[i] = rec.ID
	}
	if err := c.classify.Invalidate(ctx, ids...); err != nil {
		obs.IncFeedError("cache_del")
		c.logger.ErrorContext(ctx, "invalidate cached classifications", "records", len(ids), "err", err)
		return err
	}

	out, err := c.classify.Classify(ctx, "feed", fresh)
	if err != nil {
		obs.IncFeedError("classify")
		return fmt.Errorf("classify batch: %w", err)
	}
	reg := c.classify.Registry()
	reg.RecordFeatureCounts(out.Counts)
	for _, rec := range fresh {
		c.seen.applied(rec.ID, rec.Revision)
	}
	if c.pub != nil {
		c.publish(b.BatchID, reg.Version(), fresh, out)
	}

	c.logger.InfoContext(ctx, "classified record batch",
		"records", len(b.Records),
		"fresh", len(fresh),
		"mapped", out.Mapped(),
		"unmapped", len(out.Unmapped))
	return nil
}

func (c *Consumer) publish(batchID, version string, recs []model.CSWRecord, out registry.Classification) {
	ts := c.now().UTC()
	for _, rec := range recs {
		c.pub.Publish(membership.Event{
			RecordID:        rec.ID,
			Layers:          out.Members[rec.ID],
			RegistryVersion: version,
			BatchID:         batchID,
			Revision:        rec.Revision,
			TS:              ts,
		})
	}
}

func (c *Consumer) drop(ctx context.Context, msg *sarama.ConsumerMessage, kind string, err error) {
	obs.IncFeedError(kind)
	c.logger.ErrorContext(ctx, "dropping record batch",
		"kind", kind,
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"err", err)
}
