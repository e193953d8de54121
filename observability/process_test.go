package observability

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProcessSampler_Sample(t *testing.T) {
	req := require.New(t)
	sampler, err := NewProcessSampler()
	req.NoError(err)

	stats, err := sampler.Sample()
	req.NoError(err)
	req.Equal(int32(os.Getpid()), stats.PID)
	req.Positive(stats.RSSBytes)
	req.GreaterOrEqual(stats.CPUPercent, 0.0)
	req.GreaterOrEqual(stats.Uptime, time.Duration(0))
}
