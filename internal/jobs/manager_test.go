package jobs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kollektiv/internal/domain"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.JobStatus
		want     bool
	}{
		{domain.JobPending, domain.JobInProgress, true},
		{domain.JobInProgress, domain.JobPending, false},
		{domain.JobPending, domain.JobCompleted, true},
		{domain.JobInProgress, domain.JobCompleted, true},
		{domain.JobInProgress, domain.JobFailed, true},
		{domain.JobCompleted, domain.JobFailed, false},
		{domain.JobFailed, domain.JobCompleted, false},
		{domain.JobPending, domain.JobCancelled, true},
		{domain.JobCancelled, domain.JobInProgress, false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, canTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestIsTerminal(t *testing.T) {
	require.True(t, isTerminal(domain.JobCompleted))
	require.True(t, isTerminal(domain.JobFailed))
	require.True(t, isTerminal(domain.JobCancelled))
	require.False(t, isTerminal(domain.JobPending))
	require.False(t, isTerminal(domain.JobInProgress))
}

func TestNotFoundError_Message(t *testing.T) {
	err := &NotFoundError{ExternalID: "fc-1"}
	require.Contains(t, err.Error(), "fc-1")
}
