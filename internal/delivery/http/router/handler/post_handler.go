package handler

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"

	deliverycontext "blog/internal/delivery/context"
	"blog/internal/delivery/http/middleware"
	"blog/internal/delivery/http/response"
	"blog/internal/domain/entity"
	domainerrors "blog/internal/domain/errors"
	"blog/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// imageField is the multipart field carrying the post image.
const imageField = "image"

var blobKeyPattern = regexp.MustCompile(`^[A-Z0-9]{32}(\.[a-z0-9]{1,10})?$`)

// PostHandlerParams holds dependencies for PostHandler, injected by Fx.
type PostHandlerParams struct {
	fx.In

	PostUC  usecase.PostUsecase
	AuthUC  usecase.AuthUsecase
	Cookies *middleware.CookieWriter
	Logger  *slog.Logger
}

// PostHandler serves posts and their images.
type PostHandler struct {
	postUC  usecase.PostUsecase
	authUC  usecase.AuthUsecase
	cookies *middleware.CookieWriter
	logger  *slog.Logger
}

// NewPostHandler is the constructor for PostHandler.
func NewPostHandler(params PostHandlerParams) *PostHandler {
	return &PostHandler{
		postUC:  params.PostUC,
		authUC:  params.AuthUC,
		cookies: params.Cookies,
		logger:  params.Logger,
	}
}

// Home is the landing page of browser flows. It shows the pending flash message,
// and the post list once signed in.
func (h *PostHandler) Home(c echo.Context) error {
	message := readFlash(h.cookies.Take(c, middleware.FlashCookieName))
	identity := deliverycontext.GetIdentity(c)

	data := map[string]any{"authenticated": identity.IsAuthenticated()}
	if !identity.IsAuthenticated() {
		data["login"] = "/auth/login"
		if h.authUC.FederationEnabled() {
			data["microsoft_login"] = "/auth/microsoft?redirect=true"
		}

		return response.SuccessWithMessage(c, http.StatusOK, data, message)
	}

	posts, err := h.postUC.ListPosts(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	data["posts"] = h.toResponses(identity, posts)

	return response.SuccessWithMessage(c, http.StatusOK, data, message)
}

// ListPosts returns every post.
func (h *PostHandler) ListPosts(c echo.Context) error {
	posts, err := h.postUC.ListPosts(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, h.toResponses(deliverycontext.GetIdentity(c), posts))
}

// GetPost returns a single post.
func (h *PostHandler) GetPost(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return err
	}

	post, err := h.postUC.GetPost(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, h.toResponse(deliverycontext.GetIdentity(c), post))
}

// CreatePost accepts a JSON body, or a multipart form with an optional image.
func (h *PostHandler) CreatePost(c echo.Context) error {
	req, image, closeImage, err := h.readPost(c)
	if err != nil {
		return err
	}
	defer closeImage()

	output, err := h.postUC.CreatePost(c.Request().Context(), deliverycontext.GetIdentity(c), &usecase.CreatePostInput{
		Fields: req.fields(),
		Image:  image,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return h.mutationResponse(c, http.StatusCreated, output, "Post created successfully")
}

// UpdatePost applies a partial update, replacing the image when one is uploaded.
func (h *PostHandler) UpdatePost(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return err
	}

	req, image, closeImage, err := h.readPost(c)
	if err != nil {
		return err
	}
	defer closeImage()

	output, err := h.postUC.UpdatePost(c.Request().Context(), deliverycontext.GetIdentity(c), &usecase.UpdatePostInput{
		PostID: id,
		Fields: req.fields(),
		Image:  image,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return h.mutationResponse(c, http.StatusOK, output, "Post updated successfully")
}

// DeletePost deletes a post and its image.
func (h *PostHandler) DeletePost(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return err
	}

	output, err := h.postUC.DeletePost(c.Request().Context(), deliverycontext.GetIdentity(c), id)
	if err != nil {
		return errors.WithStack(err)
	}
	output.Post = nil

	return h.mutationResponse(c, http.StatusOK, output, "Post deleted successfully")
}

// RemoveImage detaches and deletes the image of a post.
func (h *PostHandler) RemoveImage(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return err
	}

	output, err := h.postUC.RemoveImage(c.Request().Context(), deliverycontext.GetIdentity(c), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return h.mutationResponse(c, http.StatusOK, output, "Image removed successfully")
}

// Image streams a stored image.
func (h *PostHandler) Image(c echo.Context) error {
	key := c.Param("key")
	if !blobKeyPattern.MatchString(key) {
		return domainerrors.ErrImageNotFound.WithDetails("malformed image key")
	}

	content, contentType, err := h.postUC.OpenImage(c.Request().Context(), key)
	if err != nil {
		return errors.WithStack(err)
	}
	defer content.Close()

	c.Response().Header().Set("Cache-Control", "public, max-age=86400, immutable")

	return c.Stream(http.StatusOK, contentType, content)
}

// readPost binds the post fields and opens the uploaded image, if any.
// The returned close function is always safe to call.
func (h *PostHandler) readPost(c echo.Context) (*PostRequest, *usecase.ImageUpload, func(), error) {
	noop := func() {}

	var req PostRequest
	isMultipart := strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
	if isMultipart {
		req = PostRequest{
			Title:    formValue(c, "title"),
			Subtitle: formValue(c, "subtitle"),
			Author:   formValue(c, "author"),
			Body:     formValue(c, "body"),
		}
	} else if err := c.Bind(&req); err != nil {
		return nil, nil, noop, response.BindingError(c, "INVALID_INPUT", "Invalid post input")
	}

	if err := c.Validate(&req); err != nil {
		return nil, nil, noop, err
	}

	if !isMultipart {
		return &req, nil, noop, nil
	}

	fileHeader, err := c.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return &req, nil, noop, nil
		}

		return nil, nil, noop, domainerrors.ErrValidationFailed.WithDetails("invalid image upload")
	}
	if fileHeader.Filename == "" || fileHeader.Size == 0 {
		return &req, nil, noop, nil
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, nil, noop, domainerrors.ErrValidationFailed.WithDetails("unreadable image upload")
	}

	return &req, &usecase.ImageUpload{Filename: fileHeader.Filename, Content: file}, closer(h.log(c), file), nil
}

func (h *PostHandler) mutationResponse(c echo.Context, status int, output *usecase.PostOutput, message string) error {
	body := &PostMutationResponse{Warnings: output.Warnings}
	if output.Post != nil {
		body.Post = h.toResponse(deliverycontext.GetIdentity(c), output.Post)
	}

	return response.SuccessWithMessage(c, status, body, message)
}

func (h *PostHandler) toResponses(identity entity.Identity, posts []*entity.Post) []*PostResponse {
	out := make([]*PostResponse, 0, len(posts))
	for _, post := range posts {
		out = append(out, h.toResponse(identity, post))
	}

	return out
}

func (h *PostHandler) toResponse(identity entity.Identity, post *entity.Post) *PostResponse {
	return &PostResponse{
		ID:        post.ID,
		Title:     post.Title,
		Subtitle:  post.Subtitle,
		Author:    post.Author,
		Body:      post.Body,
		ImagePath: post.ImagePath,
		ImageURL:  h.postUC.ImageURL(post.ImageKey()),
		Timestamp: post.Timestamp,
		UserID:    post.UserID,
		CanModify: entity.CanModify(identity.ID(), post),
	}
}

func (h *PostHandler) log(c echo.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(c.Request().Context(), h.logger)
}

func postID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, domainerrors.ErrPostNotFound.WithDetails("malformed post id")
	}

	return id, nil
}

// formValue returns nil for absent or empty fields so they never overwrite stored values.
func formValue(c echo.Context, name string) *string {
	value := c.FormValue(name)
	if value == "" {
		return nil
	}

	return &value
}

func closer(logger *slog.Logger, file multipart.File) func() {
	return func() {
		if err := file.Close(); err != nil && !errors.Is(err, io.EOF) {
			logger.Warn("Failed to close uploaded file", slog.Any("error", err))
		}
	}
}
