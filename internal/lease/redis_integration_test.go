//go:build integration

package lease_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custos/internal/lease"
	"custos/pkg/platform/sentinel"
	"custos/pkg/testutil/containers"
)

type RedisLeaseSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	lease *lease.Redis
}

func TestRedisLeaseSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLeaseSuite))
}

func (s *RedisLeaseSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.lease = lease.NewRedis(s.redis.Client)
}

func (s *RedisLeaseSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLeaseSuite) TestAcquireIsExclusive() {
	ctx := context.Background()

	token, err := s.lease.Acquire(ctx, "AST-00001", time.Minute)
	s.Require().NoError(err)
	s.NotEmpty(token)

	_, err = s.lease.Acquire(ctx, "AST-00001", time.Minute)
	s.Require().ErrorIs(err, sentinel.ErrLeaseHeld)
}

func (s *RedisLeaseSuite) TestReleaseThenReacquire() {
	ctx := context.Background()

	token, err := s.lease.Acquire(ctx, "AST-00001", time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.lease.Release(ctx, "AST-00001", token))

	_, err = s.lease.Acquire(ctx, "AST-00001", time.Minute)
	s.Require().NoError(err)
}

func (s *RedisLeaseSuite) TestStaleTokenCannotRelease() {
	ctx := context.Background()

	first, err := s.lease.Acquire(ctx, "AST-00001", 50*time.Millisecond)
	s.Require().NoError(err)

	// Let the lease lapse and a new holder take over.
	time.Sleep(100 * time.Millisecond)
	_, err = s.lease.Acquire(ctx, "AST-00001", time.Minute)
	s.Require().NoError(err)

	// The expired holder's release must not free the new lease.
	s.Require().NoError(s.lease.Release(ctx, "AST-00001", first))
	_, err = s.lease.Acquire(ctx, "AST-00001", time.Minute)
	s.Require().ErrorIs(err, sentinel.ErrLeaseHeld)
}

func (s *RedisLeaseSuite) TestTTLExpiresLease() {
	ctx := context.Background()

	_, err := s.lease.Acquire(ctx, "AST-00001", 50*time.Millisecond)
	s.Require().NoError(err)

	time.Sleep(100 * time.Millisecond)
	_, err = s.lease.Acquire(ctx, "AST-00001", time.Minute)
	s.Require().NoError(err)
}
