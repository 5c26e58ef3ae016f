// Package project holds the project/task domain model and the consistency
// manager that owns every mutation touching both collections.
//
// Data Model:
//
// A Project carries an owner, a member set and an ordered list of task ids.
// A Task is a unit of work referenced by exactly one project. Both live in
// separate collections (Projects, Tasks) with no cross-collection
// transactions.
//
// Invariants:
//   - every id in Project.TaskIDs resolves to a stored Task
//   - a user has access to a project iff user == owner or user is a member
//   - a task id leaves TaskIDs only together with deletion of the task
//
// Manager Interface:
//
// The Manager is the sole writer of TaskIDs. Array mutations go through the
// Store's single-document atomic operations (PushTaskID, PullTaskID,
// AddMember, PullMember) so concurrent callers never lose updates.
//
// Multi-step operations are best-effort, not atomic:
//   - CreateProject inserts tasks before the project; a failure part way
//     leaves the already inserted tasks orphaned.
//   - DetachAndDeleteTask removes the reference before deleting the task; a
//     failed delete leaves an orphaned task but never a dangling reference.
//
// Both cases are logged with the affected ids and are never compensated.
package project
