// Package pubsub wraps the Pub/Sub v2 client with the tableside topic and
// subscription layout.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/tableside-backend/pkg/config"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic names are required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client hands out cached publishers and subscriber handles. Publishers are
// stopped, flushing pending messages, when the client closes.
type Client struct {
	client  *pubsub.Client
	project string
	cfg     config.PubSubConfig

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and fails when a configured topic or subscription is
// missing. Resources are never created here; provisioning owns them.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	psClient, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:     psClient,
		project:    project,
		cfg:        cfg,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.verify(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project_id":    project,
			"topics":        topicNames(cfg),
			"subscriptions": subscriptionNames(cfg),
		}), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(gcp.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// verify checks every configured resource concurrently.
func (c *Client) verify(ctx context.Context) error {
	topics := topicNames(c.cfg)
	if len(topics) == 0 {
		return errNoTopics
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range topics {
		g.Go(func() error {
			_, err := c.client.TopicAdminClient.GetTopic(gctx, &pubsubpb.GetTopicRequest{Topic: c.topicPath(name)})
			return describe("topic", name, err)
		})
	}
	for _, name := range subscriptionNames(c.cfg) {
		g.Go(func() error {
			_, err := c.client.SubscriptionAdminClient.GetSubscription(gctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.subscriptionPath(name)})
			return describe("subscription", name, err)
		})
	}
	return g.Wait()
}

func describe(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

func topicNames(cfg config.PubSubConfig) []string {
	return nonEmpty(cfg.SettlementsTopic, cfg.InventoryTopic)
}

func subscriptionNames(cfg config.PubSubConfig) []string {
	return nonEmpty(cfg.SettlementsSubscription, cfg.InventorySubscription)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Publisher returns the shared publisher for topic, or nil when the client
// or topic is unset.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	path := c.topicPath(topic)
	if path == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[path]; ok {
		return p
	}
	p := c.client.Publisher(path)
	c.publishers[path] = p
	return p
}

// Subscriber returns a handle for subscription, or nil when it is unset.
func (c *Client) Subscriber(subscription string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	path := c.subscriptionPath(subscription)
	if path == "" {
		return nil
	}
	return c.client.Subscriber(path)
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.verify(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for path, p := range c.publishers {
		p.Stop()
		delete(c.publishers, path)
	}
	c.mu.Unlock()
	return c.client.Close()
}

func (c *Client) topicPath(name string) string {
	return c.path("topics", name)
}

func (c *Client) subscriptionPath(name string) string {
	return c.path("subscriptions", name)
}

// path expands a short id to projects/<project>/<kind>/<id>. Full resource
// names pass through unchanged.
func (c *Client) path(kind, name string) string {
	name = strings.TrimSpace(name)
	if c == nil || name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	if c.project == "" {
		return ""
	}
	return "projects/" + c.project + "/" + kind + "/" + name
}
