package mailinglist

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/humanistchoir/members/core"
)

type mailchimpMember struct {
	EmailAddress string            `json:"email_address"`
	Status       string            `json:"status"`
	MergeFields  map[string]string `json:"merge_fields"`
}

// Mailchimp adds members to an audience through the Marketing API.
type Mailchimp struct {
	baseURL string
	apiKey  string
	listID  string
	do      func(ctx context.Context, req rest.Request) (*rest.Response, error)
}

var _ core.MailingList = (*Mailchimp)(nil)

func NewMailchimp(conf *core.Config) *Mailchimp {
	prefix := conf.Mailchimp.ServerPrefix
	if prefix == "" {
		// API keys end with "-<server prefix>"
		if i := strings.LastIndex(conf.Mailchimp.APIKey, "-"); i >= 0 {
			prefix = conf.Mailchimp.APIKey[i+1:]
		}
	}
	return &Mailchimp{
		baseURL: fmt.Sprintf("https://%s.api.mailchimp.com/3.0", prefix),
		apiKey:  conf.Mailchimp.APIKey,
		listID:  conf.Mailchimp.ListID,
		do:      rest.SendWithContext,
	}
}

// Subscribe adds sub to the list as a subscribed member.
func (mc *Mailchimp) Subscribe(ctx context.Context, sub core.Subscriber) error {
	body, err := json.Marshal(mailchimpMember{
		EmailAddress: sub.Email,
		Status:       "subscribed",
		MergeFields:  map[string]string{"FNAME": sub.FirstName, "LNAME": sub.LastName},
	})
	if err != nil {
		return errors.Wrap(err, "encoding member")
	}

	auth := base64.StdEncoding.EncodeToString([]byte("anystring:" + mc.apiKey))
	req := rest.Request{
		Method:  rest.Post,
		BaseURL: fmt.Sprintf("%s/lists/%s/members", mc.baseURL, mc.listID),
		Headers: map[string]string{
			"Authorization": "Basic " + auth,
			"Content-Type":  "application/json",
		},
		Body: body,
	}
	res, err := mc.do(ctx, req)
	if err != nil {
		return errors.Wrap(err, "calling mailchimp")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("mailchimp - status: %d - body: %s", res.StatusCode, res.Body)
	}
	return nil
}
