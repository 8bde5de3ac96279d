package ws

import "strings"

const (
	ChannelLoanRepayments = "loan:repayments"
	ChannelCreditPayouts  = "credit:payouts"
	ChannelStaffActivity  = "staff:activity"
)

func LoanTopic(loanID string) string {
	return ChannelLoanRepayments + ":" + loanID
}

func CreditTopic(creditID string) string {
	return ChannelCreditPayouts + ":" + creditID
}

type subscribeMessage struct {
	Action   string `json:"action"`
	Channel  string `json:"channel"`
	LoanID   string `json:"loanId"`
	CreditID string `json:"creditId"`
}

// subscription resolves a client message into the channel, the record it
// targets and the hub topic. An empty topic means the message is ignored.
func subscription(msg subscribeMessage) (channel, id, topic string) {
	channel = strings.ToLower(strings.TrimSpace(msg.Channel))
	switch channel {
	case ChannelLoanRepayments:
		id = strings.TrimSpace(msg.LoanID)
		if id == "" {
			return channel, "", ""
		}
		return channel, id, LoanTopic(id)
	case ChannelCreditPayouts:
		id = strings.TrimSpace(msg.CreditID)
		if id == "" {
			return channel, "", ""
		}
		return channel, id, CreditTopic(id)
	case ChannelStaffActivity:
		return channel, "", ChannelStaffActivity
	default:
		return channel, "", ""
	}
}
