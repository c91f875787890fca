package chat

import (
	"fmt"
	"strings"
)

const (
	pastTimeReply = "I'm not a time traveler who can go to the past for meetings! Please provide a future date and time for our meeting."

	pastTimeFinalReply = "Oops! Looks like you're trying to schedule a meeting in the past. Unless you have a flux capacitor and 1.21 gigawatts of power, we'll need a future time! Please provide a new date and time."

	taskFailedReply = "I noticed this is a task request, but there was an issue scheduling it."

	meetingFailedReply = "I tried to schedule the meeting, but there was an issue. Please try again later."

	answerFailedReply = "I'm having trouble answering right now. Please try again in a moment."

	defaultTopic = "the discussed topic"
)

func confirmMeetingReply(ownerName, topic string) string {
	return fmt.Sprintf("Are you sure you want to have a meeting with %s about %s? (Please respond with \"yes\" to confirm)", ownerName, topic)
}

func missingDetailsReply(missing []string) string {
	return fmt.Sprintf("Please provide the following details for your meeting: %s.", strings.Join(missing, ", "))
}

func finalConfirmationReply(ownerName, topic string, d *MeetingDraft) string {
	return fmt.Sprintf("I will be scheduling a meeting with %s about %s on %s at %s for %d minutes. Do you want to confirm this? Press yes to confirm.",
		ownerName, topic, d.Date, d.Time, d.Duration)
}

func meetingScheduledReply(ownerName, topic, date, clock string, duration int, taskID string) string {
	return fmt.Sprintf("Great! I've scheduled a meeting with %s about %s on %s at %s for %d minutes. Tracking ID: %s. %s will be in touch with you soon.",
		ownerName, topic, date, clock, duration, taskID, ownerName)
}

func taskCreatedReply(ownerName, taskID string) string {
	return fmt.Sprintf("I've added this to %s's to-do list with tracking ID %s. %s will follow up with you about this task later.",
		ownerName, taskID, ownerName)
}

func guestMeetingBlockedReply(registerURL string) string {
	return fmt.Sprintf("You are a Guest User as you are not registered on MetaMate, so I can't schedule meetings for you. Please register at %s and then login with your username to use this feature.", registerURL)
}

func guestTaskBlockedReply(registerURL string) string {
	return fmt.Sprintf("You are not a registered user of MetaMate, so I can't schedule tasks for you. Please register at %s and then login with your username to use this feature.", registerURL)
}
