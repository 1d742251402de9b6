package notify

import "regexp"

// ShouldNotify decides whether ev produces a notification under cfg.
// Unknown updates never notify, and an update carrying the ticket's first
// message is a creation, which the opened rule already covers.
func ShouldNotify(ev Event, cfg Config) bool {
	if ev.Kind == KindUnknown {
		return false
	}
	if !cfg.Rule(ev.Kind).Enabled {
		return false
	}
	if ev.Kind.IsUpdate() {
		if ev.Entry == nil {
			return false
		}
		if ev.Ticket.IsFirstMessage(*ev.Entry) {
			return false
		}
	}
	return true
}

// SubjectIgnored reports whether subject matches the compiled ignore pattern.
// A nil pattern ignores nothing.
func SubjectIgnored(subject string, re *regexp.Regexp) bool {
	return re != nil && re.MatchString(subject)
}
