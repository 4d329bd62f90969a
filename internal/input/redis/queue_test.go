package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attackgraph/pkg/models"
)

func TestProducerConsumerFIFO(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := Config{Addr: mr.Addr(), Key: "jobs", BlockTimeout: 100 * time.Millisecond}

	p, err := NewProducer(cfg)
	require.NoError(t, err)
	defer p.Close()
	c, err := NewConsumer(cfg)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, p.Push(ctx,
		models.JobRequest{ID: "1", Module: "smb_enum", Target: models.Target{Host: "10.0.0.5"}},
		models.JobRequest{ID: "2", Module: "ldap_enum", Target: models.Target{Host: "10.0.0.5", Proto: "ldap"}},
	))
	n, err := p.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	first, err := c.PopJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "1", first.ID)

	second, err := c.PopJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "ldap_enum", second.Module)
	assert.Equal(t, "ldap", second.Target.Proto)
}

func TestConsumerEmptyQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewConsumer(Config{Addr: mr.Addr(), Key: "jobs", BlockTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer c.Close()

	job, err := c.PopJob(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestDecodeJobRejectsIncomplete(t *testing.T) {
	_, err := DecodeJob([]byte(`{"module":"smb_enum","target":{}}`))
	assert.Error(t, err)
	_, err = DecodeJob([]byte(`not json`))
	assert.Error(t, err)
}

func TestConfigRequiresKey(t *testing.T) {
	_, err := NewConsumer(Config{})
	assert.Error(t, err)
	_, err = NewProducer(Config{})
	assert.Error(t, err)
}
