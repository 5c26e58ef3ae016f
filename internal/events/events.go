// Package events publishes change notifications after committed mutations.
//
// Every notification is wrapped in an Envelope carrying a unique message id
// so at-least-once consumers can de-duplicate. Publishers deliver envelopes
// to a single destination (a NATS subject or an SQS queue).
package events

import (
	"encoding/json"
	"time"

	"github.com/fyrsmithlabs/projectd/internal/project"
)

// Type names a change notification.
type Type string

const (
	ProjectCreated Type = "ProjectCreated"
	ProjectUpdated Type = "ProjectUpdated"
	ProjectDeleted Type = "ProjectDeleted"
	MemberAdded    Type = "MemberAdded"
	MemberRemoved  Type = "MemberRemoved"
	TaskAdded      Type = "TaskAdded"
	TaskUpdated    Type = "TaskUpdated"
	TaskDeleted    Type = "TaskDeleted"
)

// Types lists every change type in declaration order.
var Types = []Type{
	ProjectCreated,
	ProjectUpdated,
	ProjectDeleted,
	MemberAdded,
	MemberRemoved,
	TaskAdded,
	TaskUpdated,
	TaskDeleted,
}

// Envelope is the wire format of every message.
type Envelope struct {
	MessageID   string          `json:"messageId"`
	MessageType Type            `json:"messageType"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Payload     json.RawMessage `json:"payload"`
}

// ProjectRef identifies a deleted project.
type ProjectRef struct {
	ProjectID string `json:"projectId"`
}

// MemberChange describes a membership change.
type MemberChange struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
}

// TaskChange carries a task in the context of its project. ProjectID is empty
// for tasks created without a project.
type TaskChange struct {
	ProjectID string        `json:"projectId,omitempty"`
	Task      *project.Task `json:"task"`
}

// TaskRef identifies a deleted task.
type TaskRef struct {
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId"`
}
