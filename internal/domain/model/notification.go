package model

// ReminderItem is one unresolved deployment line in a reminder message.
type ReminderItem struct {
	DeploymentID int64
	CommitSHA    string
	DisplayName  string
	Status       DeploymentStatus
	Link         string
}

// ReminderMessage is the structured payload handed to the notification
// collaborator. Formatting for a specific chat product happens in the
// adapter, not here.
type ReminderMessage struct {
	Application string
	Team        string
	Channel     string
	Items       []ReminderItem
}
