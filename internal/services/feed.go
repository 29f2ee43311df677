package services

import (
	"context"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/repositories"
)

// FeedService assembles the post lists shown on the home, explore, profile
// and saved pages. Every call recomputes from the tables.
type FeedService struct {
	store *repositories.Store
}

func NewFeedService(store *repositories.Store) *FeedService {
	return &FeedService{store: store}
}

// UserPostsResult is a profile's post list. Private is set when the posts
// were withheld because of the owner's visibility preference.
type UserPostsResult struct {
	Posts   []models.Post `json:"posts"`
	Private bool          `json:"profile_private"`
}

// FeedItem is a post with its author summary and the viewer's flags.
type FeedItem struct {
	models.Post
	Author  *models.UserCompact `json:"author,omitempty"`
	IsLiked bool                `json:"is_liked"`
	IsSaved bool                `json:"is_saved"`
}

// ResolveSort picks the requested sort mode, falling back to the viewer's
// feed_sorting preference and then to latest.
func ResolveSort(viewer *models.User, requested string) string {
	switch requested {
	case models.SortLatest, models.SortPopular:
		return requested
	}
	if viewer != nil && viewer.FeedSorting == models.SortPopular {
		return models.SortPopular
	}
	return models.SortLatest
}

// Feed returns the home feed. Anonymous viewers get every post, newest first.
// Authenticated viewers get their own posts plus posts by the identities they
// follow, in the requested order.
func (s *FeedService) Feed(ctx context.Context, viewer *models.User, sort string) ([]models.Post, error) {
	q := repositories.FeedQuery{}
	if viewer != nil {
		q.ViewerID = viewer.ID
		q.Popular = ResolveSort(viewer, sort) == models.SortPopular
	}
	posts, err := s.store.Posts.ListFeed(ctx, q)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return posts, nil
}

// Explore returns every post regardless of the follow graph.
func (s *FeedService) Explore(ctx context.Context, viewer *models.User, sort string) ([]models.Post, error) {
	q := repositories.FeedQuery{Popular: ResolveSort(viewer, sort) == models.SortPopular}
	posts, err := s.store.Posts.ListFeed(ctx, q)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return posts, nil
}

// UserPosts returns owner's posts, newest first. A private profile is only
// visible to its owner and to the owner's followers.
func (s *FeedService) UserPosts(ctx context.Context, viewer, owner *models.User) (*UserPostsResult, error) {
	if owner.ProfileVisibility == models.ProfilePrivate {
		allowed := viewer != nil && viewer.ID == owner.ID
		if !allowed && viewer != nil {
			following, err := s.store.Follows.IsFollowing(ctx, viewer.ID, owner.ID)
			if err != nil {
				return nil, storeErr(err, nil)
			}
			allowed = following
		}
		if !allowed {
			return &UserPostsResult{Posts: []models.Post{}, Private: true}, nil
		}
	}

	posts, err := s.store.Posts.ListFeed(ctx, repositories.FeedQuery{AuthorID: owner.ID})
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return &UserPostsResult{Posts: posts}, nil
}

// SavedPosts returns the viewer's bookmarks, most recently saved first.
func (s *FeedService) SavedPosts(ctx context.Context, viewer *models.User) ([]models.Post, error) {
	posts, err := s.store.Posts.GetSavedPosts(ctx, viewer.ID)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return posts, nil
}

// Enrich attaches author summaries and, for an authenticated viewer, the
// liked and saved flags of every post.
func (s *FeedService) Enrich(ctx context.Context, viewer *models.User, posts []models.Post) ([]FeedItem, error) {
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	liked := map[uint]bool{}
	saved := map[uint]bool{}
	if viewer != nil {
		var err error
		if liked, err = s.store.Likes.GetLikedPostIDs(ctx, viewer.ID, ids); err != nil {
			return nil, storeErr(err, nil)
		}
		if saved, err = s.store.SavedPosts.GetSavedPostIDs(ctx, viewer.ID, ids); err != nil {
			return nil, storeErr(err, nil)
		}
	}

	items := make([]FeedItem, len(posts))
	for i, p := range posts {
		items[i] = FeedItem{Post: p, IsLiked: liked[p.ID], IsSaved: saved[p.ID]}
		if p.Author != nil {
			author := p.Author.ToCompact()
			items[i].Author = &author
		}
	}
	return items, nil
}
