// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package source

// SimulatedMessages is the pool of workplace messages attached to
// simulated events for sentiment scoring.
var SimulatedMessages = []string{
	// Positive
	"Great work on the project! Really impressed with the progress.",
	"Thanks for your help today, I really appreciate it.",
	"The team meeting went well, everyone contributed great ideas.",
	"Looking forward to collaborating on the new feature.",
	"Excellent presentation, very clear and well-organized.",

	// Neutral
	"Meeting scheduled for 3 PM tomorrow.",
	"Please review the document and provide feedback.",
	"The system update will be deployed tonight.",
	"Can you send me the latest version of the report?",
	"Reminder: Deadline for the project is next Friday.",

	// Negative
	"I'm really frustrated with how things are going here.",
	"This is unacceptable, I can't work under these conditions.",
	"I'm done with this place, nothing ever works properly.",
	"This is a complete waste of my time and effort.",
	"I'm seriously considering leaving this company.",
	"The management doesn't care about us at all.",
	"This project is a disaster and going nowhere.",
	"I hate dealing with these constant problems.",
	"Why does everything have to be so difficult here?",
	"I'm fed up with all these unnecessary restrictions.",
}
