// Package domain contains core concepts of the realtime layer.
// This file defines identities and the room convention.
// No runtime, network, or storage logic should be added here.
package domain

// UserID is the stable identity of an authenticated user.
type UserID string

// RoomID names a broadcast group. Every project has exactly one room
// and the room shares the project id.
type RoomID string

// TaskID identifies a task owned by the business layer.
type TaskID string

// ProjectRoom returns the room carrying the events of a project.
func ProjectRoom(projectID string) RoomID {
	return RoomID(projectID)
}
