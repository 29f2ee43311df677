package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/repositories"
	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/anonto42/writer/backend/pkg/storage"
)

const maxTitleLength = 150

// PostService creates, edits and deletes posts.
type PostService struct {
	store  *repositories.Store
	images storage.ImageStore
}

func NewPostService(store *repositories.Store, images storage.ImageStore) *PostService {
	return &PostService{store: store, images: images}
}

// PostInput carries the editable post fields. AuthorName falls back to the
// owner's username when blank.
type PostInput struct {
	Title       string
	Body        string
	AuthorName  string
	Image       *ImageUpload
	RemoveImage bool
}

// PostDetail is a single post as seen by a viewer.
type PostDetail struct {
	Post     FeedItem      `json:"post"`
	Comments []CommentView `json:"comments"`
}

func (s *PostService) Create(ctx context.Context, author *models.User, in PostInput) (*models.Post, error) {
	post := &models.Post{UserID: author.ID}
	if err := s.apply(ctx, post, author, in); err != nil {
		return nil, err
	}
	if err := s.store.Posts.CreatePost(ctx, post); err != nil {
		return nil, storeErr(err, nil)
	}
	post.Author = author
	return post, nil
}

// Get loads a post with its comments. The liked and saved flags are filled
// for an authenticated viewer.
func (s *PostService) Get(ctx context.Context, viewer *models.User, id uint) (*PostDetail, error) {
	post, err := s.store.Posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, apperrors.ErrPostNotFound)
	}
	comments, err := s.store.Comments.GetCommentsByPostID(ctx, id)
	if err != nil {
		return nil, storeErr(err, nil)
	}

	detail := &PostDetail{Post: FeedItem{Post: *post}, Comments: make([]CommentView, len(comments))}
	if post.Author != nil {
		author := post.Author.ToCompact()
		detail.Post.Author = &author
	}
	for i, c := range comments {
		detail.Comments[i] = newCommentView(c)
	}
	if viewer != nil {
		if detail.Post.IsLiked, err = s.store.Likes.HasUserLikedPost(ctx, viewer.ID, id); err != nil {
			return nil, storeErr(err, nil)
		}
		if detail.Post.IsSaved, err = s.store.SavedPosts.IsPostSaved(ctx, viewer.ID, id); err != nil {
			return nil, storeErr(err, nil)
		}
	}
	return detail, nil
}

// GetOwned loads a post for editing. Only the owner may see the edit form.
func (s *PostService) GetOwned(ctx context.Context, viewer *models.User, id uint) (*models.Post, error) {
	post, err := s.store.Posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, apperrors.ErrPostNotFound)
	}
	if post.UserID != viewer.ID {
		return nil, apperrors.ErrNotPostOwner
	}
	return post, nil
}

// Update edits an owned post. The owner never changes.
func (s *PostService) Update(ctx context.Context, viewer *models.User, id uint, in PostInput) (*models.Post, error) {
	post, err := s.GetOwned(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if in.RemoveImage {
		post.ImageFile = ""
	}
	if err := s.apply(ctx, post, viewer, in); err != nil {
		return nil, err
	}
	if err := s.store.Posts.UpdatePost(ctx, post); err != nil {
		return nil, storeErr(err, nil)
	}
	return post, nil
}

// Delete removes an owned post together with its likes, comments and
// bookmarks. Messages that shared it keep their text.
func (s *PostService) Delete(ctx context.Context, viewer *models.User, id uint) error {
	if _, err := s.GetOwned(ctx, viewer, id); err != nil {
		return err
	}
	return storeErr(s.store.Posts.DeletePost(ctx, id), apperrors.ErrPostNotFound)
}

func (s *PostService) apply(ctx context.Context, post *models.Post, owner *models.User, in PostInput) error {
	title := strings.TrimSpace(in.Title)
	body := strings.TrimSpace(in.Body)

	fields := map[string]string{}
	if title == "" {
		fields["title"] = "title is required"
	} else if utf8.RuneCountInString(title) > maxTitleLength {
		fields["title"] = "title must be at most 150 characters"
	}
	if body == "" {
		fields["body"] = "body is required"
	}
	if len(fields) > 0 {
		return apperrors.InvalidFields(fields)
	}

	post.Title = title
	post.Body = body
	post.AuthorName = strings.TrimSpace(in.AuthorName)
	if post.AuthorName == "" {
		post.AuthorName = owner.Username
	}

	if in.Image != nil {
		url, err := s.images.Upload(ctx, "posts", in.Image.Filename, in.Image.Reader)
		if err != nil {
			return imageErr("image", err)
		}
		post.ImageFile = url
	}
	return nil
}
