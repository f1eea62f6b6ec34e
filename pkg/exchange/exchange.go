// Package exchange moves encoded DeviceProfiles between nodes of a
// distributed group over NATS. Each node publishes its own profile on a
// per-rank subject; a coordinator collects one profile per rank and hands
// the set, ordered by rank, to the scheduler and presentation layers.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nats-io/nats.go"

	"github.com/infermesh/profiler/pkg/logger"
	"github.com/infermesh/profiler/pkg/models"
	"github.com/infermesh/profiler/pkg/wire"
)

const (
	subjectPrefix = "profiler.device"

	// collectBuffer sizes the inbound message channel; re-publishes of the
	// same rank may arrive faster than decode drains them.
	collectBuffer = 64
)

// ErrIncomplete is returned when Collect stops before seeing every rank.
var ErrIncomplete = errors.New("exchange: missing profiles at deadline")

// Conn is the slice of nats.Conn this package uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error)
	Flush() error
}

// Exchange publishes and collects device profiles.
type Exchange struct {
	nc  Conn
	log logger.Logger
}

func New(nc Conn, log logger.Logger) *Exchange {
	return &Exchange{nc: nc, log: log}
}

// SubjectForRank returns the per-rank publish subject.
func SubjectForRank(rank uint32) string {
	return fmt.Sprintf("%s.%d", subjectPrefix, rank)
}

// Publish sends the profile in the extended wire format on its rank's
// subject.
func (e *Exchange) Publish(profile *models.DeviceProfile) error {
	subject := SubjectForRank(profile.Rank)

	if err := e.nc.Publish(subject, wire.EncodeFull(profile)); err != nil {
		return fmt.Errorf("exchange: publish rank %d: %w", profile.Rank, err)
	}

	if err := e.nc.Flush(); err != nil {
		return fmt.Errorf("exchange: flush: %w", err)
	}

	e.log.Info().
		Uint32("rank", profile.Rank).
		Str("capture_id", profile.CaptureID).
		Str("subject", subject).
		Msg("published device profile")

	return nil
}

// Collect subscribes to every rank's subject and gathers one profile per
// rank until expected distinct ranks arrived or the context ends. Later
// captures of a rank replace earlier ones. On deadline the profiles seen so
// far are returned along with ErrIncomplete; a partial set is still valid
// scheduler input.
func (e *Exchange) Collect(ctx context.Context, expected int) ([]*models.DeviceProfile, error) {
	msgs := make(chan *nats.Msg, collectBuffer)

	sub, err := e.nc.Subscribe(subjectPrefix+".*", func(msg *nats.Msg) {
		select {
		case msgs <- msg:
		default:
			// Channel full: drop; the publisher re-sends on re-profile.
		}
	})
	if err != nil {
		return nil, fmt.Errorf("exchange: subscribe: %w", err)
	}

	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			e.log.Warn().Err(err).Msg("unsubscribe failed")
		}
	}()

	byRank := make(map[uint32]*models.DeviceProfile, expected)

	for len(byRank) < expected {
		select {
		case <-ctx.Done():
			return sortedByRank(byRank), fmt.Errorf("%w: have %d of %d: %v", ErrIncomplete, len(byRank), expected, ctx.Err())
		case msg := <-msgs:
			profile, err := wire.DecodeFull(msg.Data)
			if err != nil {
				e.log.Warn().Err(err).Str("subject", msg.Subject).Msg("discarding undecodable profile")
				continue
			}

			if prev, ok := byRank[profile.Rank]; ok && prev.CaptureID != profile.CaptureID {
				e.log.Debug().
					Uint32("rank", profile.Rank).
					Str("capture_id", profile.CaptureID).
					Msg("replacing earlier capture for rank")
			}

			byRank[profile.Rank] = profile
		}
	}

	return sortedByRank(byRank), nil
}

func sortedByRank(byRank map[uint32]*models.DeviceProfile) []*models.DeviceProfile {
	profiles := make([]*models.DeviceProfile, 0, len(byRank))
	for _, p := range byRank {
		profiles = append(profiles, p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Rank < profiles[j].Rank
	})

	return profiles
}
