package confirmation

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-shop-api/internal/application/notification"
	"github.com/go-shop-api/internal/domain"
)

const emailSubject = "Confirm your email address"

// ConfirmURL is the link mailed to the user. Opening it redeems tok.
func ConfirmURL(siteURL, tok string) string {
	return siteURL + "/v1/confirm-email?key=" + url.QueryEscape(tok)
}

func render(purpose domain.Purpose, siteURL string, ttl time.Duration, subjectID, to, tok string) notification.Task {
	if purpose == domain.PurposePhone {
		return notification.Task{
			Channel:   notification.ChannelSMS,
			SubjectID: subjectID,
			To:        to,
			Body:      fmt.Sprintf("Your verification code: %s. It expires in %s.", tok, humanDuration(ttl)),
		}
	}
	return notification.Task{
		Channel:   notification.ChannelEmail,
		SubjectID: subjectID,
		To:        to,
		Subject:   emailSubject,
		Body: "Hello!\n\n" +
			"To confirm your email address, follow the link below:\n\n" +
			ConfirmURL(siteURL, tok) + "\n\n" +
			"The link is valid for " + humanDuration(ttl) + ". If you did not register, ignore this message.\n",
	}
}

// humanDuration spells d in the largest whole unit that divides it.
func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
