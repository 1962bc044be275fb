// Package events defines the notifications emitted while editing workflows.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every editor event.
const Topic = "stepflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowSavedEvent      EventType = "workflow.saved"
	WorkflowSaveFailedEvent EventType = "workflow.save_failed"
	WorkflowExportedEvent   EventType = "workflow.exported"
	StepDeleteRejectedEvent EventType = "step.delete_rejected"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type WorkflowSaved struct {
	BaseEvent

	Name        string `json:"name"`
	Steps       int    `json:"steps"`
	Connections int    `json:"connections"`
}

func (w WorkflowSaved) GetType() EventType {
	return WorkflowSavedEvent
}

func (w WorkflowSaved) Notice() Notice {
	return Notice{Level: NoticeSuccess, Message: "Workflow saved successfully"}
}

// WorkflowSaveFailed is emitted when the durability step of a save fails.
// The in-memory graph keeps its edits.
type WorkflowSaveFailed struct {
	BaseEvent

	Error string `json:"error"`
}

func (w WorkflowSaveFailed) GetType() EventType {
	return WorkflowSaveFailedEvent
}

func (w WorkflowSaveFailed) Notice() Notice {
	return Notice{Level: NoticeError, Message: "Failed to save workflow"}
}

type WorkflowExported struct {
	BaseEvent

	FileName string `json:"file_name"`
	Path     string `json:"path,omitempty"`
}

func (w WorkflowExported) GetType() EventType {
	return WorkflowExportedEvent
}

func (w WorkflowExported) Notice() Notice {
	return Notice{Level: NoticeSuccess, Message: "Workflow exported as " + w.FileName}
}

type StepDeleteRejected struct {
	BaseEvent

	StepID string `json:"step_id"`
	Reason string `json:"reason"`
}

func (s StepDeleteRejected) GetType() EventType {
	return StepDeleteRejectedEvent
}

func (s StepDeleteRejected) Notice() Notice {
	return Notice{Level: NoticeError, Message: "Cannot delete the only trigger"}
}
