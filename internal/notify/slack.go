package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/slack-go/slack"

	"github.com/ledgereye/internal/models"
)

// SlackAlerter tells operators about failed report executions. It implements
// executor.FailureAlerter; posting errors are logged and dropped so an
// unreachable Slack never affects engine state.
type SlackAlerter struct {
	client  *slack.Client
	channel string
}

func NewSlackAlerter(token, channel string) *SlackAlerter {
	return &SlackAlerter{
		client:  slack.New(token),
		channel: channel,
	}
}

func (s *SlackAlerter) ExecutionFailed(schedule *models.ReportSchedule, record *models.ReportExecution) {
	attachment := slack.Attachment{
		Color: "#ff0000",
		Title: fmt.Sprintf("Scheduled report failed: %s", schedule.Name),
		Text:  record.ErrorMessage,
		Fields: []slack.AttachmentField{
			{
				Title: "Report",
				Value: string(record.ReportType),
				Short: true,
			},
			{
				Title: "Format",
				Value: string(record.ExportFormat),
				Short: true,
			},
			{
				Title: "Recipients",
				Value: strconv.Itoa(len(record.Recipients)),
				Short: true,
			},
			{
				Title: "Attempted",
				Value: record.ExecutedAt.Format(time.RFC3339),
				Short: true,
			},
		},
		Footer: "LedgerEye Report Scheduler",
		Ts:     json.Number(strconv.FormatInt(time.Now().Unix(), 10)),
	}

	_, _, err := s.client.PostMessage(
		s.channel,
		slack.MsgOptionAttachments(attachment),
	)
	if err != nil {
		log.Printf("Warning: failed to post failure alert to slack: %v", err)
	}
}
