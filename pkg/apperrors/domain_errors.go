package apperrors

var (
	ErrUserNotFound         = NotFound("user not found")
	ErrPostNotFound         = NotFound("post not found")
	ErrMessageNotFound      = NotFound("message not found")
	ErrNotificationNotFound = NotFound("notification not found")

	ErrNotAuthenticated   = Unauthorized("login required")
	ErrInvalidCredentials = Unauthorized("invalid email or password")
	ErrInvalidToken       = Unauthorized("the verification link is invalid or has expired")

	ErrCannotFollowSelf  = InvalidArg("you cannot follow yourself")
	ErrCannotMessageSelf = InvalidArg("you cannot message yourself")
	ErrEmptyComment      = InvalidField("body", "comment cannot be empty")
	ErrEmptyMessage      = InvalidField("body", "message must have text or an image")

	ErrNotPostOwner       = Forbidden("you are not authorized to modify this post")
	ErrNotMessageSender   = Forbidden("you can only modify messages you sent")
	ErrNotNotificationOwn = Forbidden("you cannot modify this notification")
	ErrMessagingDisabled  = Forbidden("this user does not accept messages")
	ErrMessagingFollowers = Forbidden("this user only accepts messages from people who follow them")

	ErrOAuthNoEmail         = Unauthorized("the identity provider did not return an email address")
	ErrOAuthEmailUnverified = Unauthorized("the identity provider has not verified this email address")
)
