package pubsub

import (
	"testing"

	"github.com/angelmondragon/inkledger-backend/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestTopicNames(t *testing.T) {
	names := topicNames(config.PubSubConfig{BillingTopic: " ink-billing ", WalletTopic: "ink-wallet"})
	assert.Equal(t, []string{"ink-billing", "ink-wallet"}, names)

	names = topicNames(config.PubSubConfig{BillingTopic: "ink-billing", WalletTopic: "ink-billing"})
	assert.Equal(t, []string{"ink-billing"}, names)

	assert.Empty(t, topicNames(config.PubSubConfig{}))
}

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "ink-prod"}

	assert.Equal(t, "projects/ink-prod/topics/ink-billing", c.topicResourceName("ink-billing"))
	assert.Equal(t, "projects/other/topics/x", c.topicResourceName("projects/other/topics/x"))
	assert.Equal(t, "", c.topicResourceName("  "))
	assert.Equal(t, "", (&Client{}).topicResourceName("ink-billing"))

	var nilClient *Client
	assert.Equal(t, "", nilClient.topicResourceName("ink-billing"))
	assert.Nil(t, nilClient.BillingPublisher())
}
