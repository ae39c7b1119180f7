package tui

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thruflo/conductor/internal/workflow"
)

func TestNotifier_Bell(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(&buf)

	n.Bell()
	n.Bell()

	assert.Equal(t, Bell+Bell, buf.String())
}

func TestNotifier_NotifyAttention(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(&buf)

	assert.NoError(t, n.NotifyAttention("title", "message", true))
	assert.Equal(t, Bell, buf.String(), "foreground rings the bell")

	buf.Reset()
	if runtime.GOOS != "darwin" {
		assert.NoError(t, n.NotifyAttention("title", "message", false))
	}
	assert.Empty(t, buf.String(), "background does not ring the bell")
}

func TestNotifyForReason(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(&buf)

	assert.NoError(t, n.NotifyForReason(NotifyReasonDone, "Atlas", true))
	assert.Equal(t, Bell, buf.String())
}

func TestNotificationReason_Strings(t *testing.T) {
	tests := []struct {
		reason  NotificationReason
		title   string
		message string
	}{
		{NotifyReasonNeedsInput, "Input Required", "Atlas needs your answers"},
		{NotifyReasonPlanReady, "Plan Ready", "Atlas has a plan ready to execute"},
		{NotifyReasonDone, "Completed", "Atlas finished executing"},
		{NotifyReasonStalled, "Stalled", "Atlas has stopped making progress"},
		{NotifyReasonCrash, "Error", "Atlas hit an error"},
		{NotifyReasonNone, "Conductor", "Atlas needs attention"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.title, tt.reason.String())
			assert.Equal(t, tt.message, tt.reason.DefaultMessage("Atlas"))
		})
	}

	assert.Equal(t, "The project finished executing", NotifyReasonDone.DefaultMessage(""))
}

func TestReasonFor(t *testing.T) {
	snap := func(s workflow.State) workflow.Snapshot { return workflow.Snapshot{State: s} }
	stalled := snap(workflow.StateExecuting)
	stalled.Stalled = true

	tests := []struct {
		name string
		prev workflow.Snapshot
		next workflow.Snapshot
		want NotificationReason
	}{
		{"questions", snap(workflow.StateExecuting), snap(workflow.StateQuestions), NotifyReasonNeedsInput},
		{"plan questions", snap(workflow.StatePlanning), snap(workflow.StatePlanQuestions), NotifyReasonNeedsInput},
		{"plan ready", snap(workflow.StatePlanning), snap(workflow.StatePlanned), NotifyReasonPlanReady},
		{"cancelled execution", snap(workflow.StateExecuting), snap(workflow.StatePlanned), NotifyReasonNone},
		{"complete", snap(workflow.StateExecuting), snap(workflow.StateComplete), NotifyReasonDone},
		{"error", snap(workflow.StateExecuting), snap(workflow.StateError), NotifyReasonCrash},
		{"stalled", snap(workflow.StateExecuting), stalled, NotifyReasonStalled},
		{"still stalled", stalled, stalled, NotifyReasonNone},
		{"unchanged", snap(workflow.StatePlanning), snap(workflow.StatePlanning), NotifyReasonNone},
		{"configured", snap(workflow.StateReset), snap(workflow.StateConfigured), NotifyReasonNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReasonFor(tt.prev, tt.next))
		})
	}
}
