package audit

import "fmt"

// Action texts shown in the activity log.

func UserRegistered(email string) string {
	return fmt.Sprintf("User %s registered", email)
}

func UserLoggedIn(email string) string {
	return fmt.Sprintf("User %s logged in", email)
}

func UserLoggedOut() string {
	return "User logged out"
}

func UserUpdatedProfile(email string) string {
	return fmt.Sprintf("User %s updated profile", email)
}

func ProjectCreated(name string) string {
	return fmt.Sprintf("Created project %s", name)
}

func ProjectUpdated(name string) string {
	return fmt.Sprintf("Updated project %s", name)
}

func TaskCreated(title string) string {
	return fmt.Sprintf("Created task %s", title)
}

func TaskUpdated(title string) string {
	return fmt.Sprintf("Updated task %s", title)
}

func TaskStatusUpdated(title, status string) string {
	return fmt.Sprintf("Updated task %s status to %s", title, status)
}
