package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/shurcooL/githubv4"

	"github.com/steveyegge/assignbot/internal/tracker"
	"github.com/steveyegge/assignbot/internal/types"
)

type actorNode struct {
	Login githubv4.String
	Bot   struct {
		ID githubv4.ID
	} `graphql:"... on Bot"`
	User struct {
		ID githubv4.ID
	} `graphql:"... on User"`
}

func (a *actorNode) id() string {
	if a.Bot.ID != nil {
		return fmt.Sprint(a.Bot.ID)
	}
	if a.User.ID != nil {
		return fmt.Sprint(a.User.ID)
	}
	return ""
}

// BotIdentity finds the configured bot among the repository's assignable actors.
// Logins compare case-insensitively.
func (c *Client) BotIdentity(ctx context.Context) (*types.Identity, error) {
	vars := c.repoVars()
	vars["cursor"] = (*githubv4.String)(nil)

	for {
		var q struct {
			Repository struct {
				SuggestedActors struct {
					Nodes    []actorNode
					PageInfo struct {
						EndCursor   githubv4.String
						HasNextPage bool
					}
				} `graphql:"suggestedActors(capabilities: [CAN_BE_ASSIGNED], first: 100, after: $cursor)"`
			} `graphql:"repository(owner: $owner, name: $repo)"`
		}
		err := c.withRetry(ctx, func() error {
			return c.gql.Query(ctx, &q, vars)
		})
		if err != nil {
			return nil, fmt.Errorf("listing assignable actors: %w", err)
		}

		for i := range q.Repository.SuggestedActors.Nodes {
			actor := &q.Repository.SuggestedActors.Nodes[i]
			if !strings.EqualFold(string(actor.Login), c.botLogin) {
				continue
			}
			id := actor.id()
			if id == "" {
				continue
			}
			return &types.Identity{ID: id, Login: string(actor.Login)}, nil
		}

		page := q.Repository.SuggestedActors.PageInfo
		if !page.HasNextPage {
			break
		}
		vars["cursor"] = githubv4.NewString(page.EndCursor)
	}
	return nil, fmt.Errorf("%w: %s", tracker.ErrBotNotFound, c.botLogin)
}
