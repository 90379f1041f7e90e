package controller

import (
	"errors"
	"io"
	"strings"

	"ai-editorial-be/internal/dto"
	"ai-editorial-be/internal/mapper"
	"ai-editorial-be/internal/pkg/serverutils"
	"ai-editorial-be/internal/repository/contract"
	"ai-editorial-be/internal/service"
	"ai-editorial-be/pkg/editor"
	"ai-editorial-be/pkg/extract"
	"ai-editorial-be/pkg/revision"
	"ai-editorial-be/pkg/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IWorkflowController interface {
	RegisterRoutes(r fiber.Router)
	Catalog(ctx *fiber.Ctx) error
	Begin(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	SubmitSelection(ctx *fiber.Ctx) error
	SubmitContent(ctx *fiber.Ctx) error
	Approve(ctx *fiber.Ctx) error
	Decline(ctx *fiber.Ctx) error
	DecideFeedback(ctx *fiber.Ctx) error
	DecideAllFeedback(ctx *fiber.Ctx) error
	Advance(ctx *fiber.Ctx) error
	Finalize(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	Activity(ctx *fiber.Ctx) error
	Documents(ctx *fiber.Ctx) error
}

type workflowController struct {
	service   service.IWorkflowService
	documents service.IDocumentService
	activity  service.IActivityService
	jwtSecret string
}

func NewWorkflowController(
	service service.IWorkflowService,
	documents service.IDocumentService,
	activity service.IActivityService,
	jwtSecret string,
) IWorkflowController {
	return &workflowController{
		service:   service,
		documents: documents,
		activity:  activity,
		jwtSecret: jwtSecret,
	}
}

func (c *workflowController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/workflow/v1")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Get("catalog", c.Catalog)
	h.Get("documents", c.Documents)
	h.Post("", c.Begin)
	h.Get(":id", c.Show)
	h.Post(":id/selection", c.SubmitSelection)
	h.Post(":id/content", c.SubmitContent)
	h.Post(":id/paragraphs/:index/approve", c.Approve)
	h.Post(":id/paragraphs/:index/decline", c.Decline)
	h.Post(":id/paragraphs/:index/feedback", c.DecideFeedback)
	h.Post(":id/feedback", c.DecideAllFeedback)
	h.Post(":id/next", c.Advance)
	h.Post(":id/finalize", c.Finalize)
	h.Post(":id/cancel", c.Cancel)
	h.Get(":id/activity", c.Activity)
}

func (c *workflowController) Catalog(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get editor catalog", c.service.Catalog()))
}

func (c *workflowController) Begin(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx)

	var req dto.BeginWorkflowRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Begin(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success start workflow", res))
}

func (c *workflowController) Show(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Show(ctx.UserContext(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show workflow", res))
}

func (c *workflowController) SubmitSelection(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	var req dto.SubmitSelectionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SubmitSelection(ctx.UserContext(), serverutils.UserID(ctx), id, req.Text)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success submit selection", res))
}

// SubmitContent accepts either a multipart upload in the "file" field or a
// JSON body with the document text.
func (c *workflowController) SubmitContent(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}
	userId := serverutils.UserID(ctx)

	if strings.HasPrefix(string(ctx.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Missing file field")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return err
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return err
		}

		res, err := c.service.UploadContent(ctx.UserContext(), userId, id, fileHeader.Filename, data)
		if err != nil {
			return err
		}
		return ctx.JSON(serverutils.SuccessResponse("Success upload document", res))
	}

	var req dto.SubmitContentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SubmitContent(ctx.UserContext(), userId, id, req.Content)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success submit document", res))
}

func (c *workflowController) Approve(ctx *fiber.Ctx) error {
	id, index, err := paragraphParams(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Approve(ctx.UserContext(), serverutils.UserID(ctx), id, index)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success approve paragraph", res))
}

func (c *workflowController) Decline(ctx *fiber.Ctx) error {
	id, index, err := paragraphParams(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Decline(ctx.UserContext(), serverutils.UserID(ctx), id, index)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success decline paragraph", res))
}

func (c *workflowController) DecideFeedback(ctx *fiber.Ctx) error {
	id, index, err := paragraphParams(ctx)
	if err != nil {
		return err
	}

	var req dto.FeedbackDecisionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.DecideFeedback(ctx.UserContext(), serverutils.UserID(ctx), id, index, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success decide feedback", res))
}

func (c *workflowController) DecideAllFeedback(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	var req dto.BulkFeedbackDecisionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.DecideAllFeedback(ctx.UserContext(), serverutils.UserID(ctx), id, *req.Approved)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success decide all feedback", res))
}

func (c *workflowController) Advance(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	var req dto.AdvanceWorkflowRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	res, err := c.service.AdvanceToNextStage(ctx.UserContext(), serverutils.UserID(ctx), id, req.ThreadRef)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Success continue to next stage", res))
}

func (c *workflowController) Finalize(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Finalize(ctx.UserContext(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success generate final document", res))
}

func (c *workflowController) Cancel(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Cancel(ctx.UserContext(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success cancel workflow", res))
}

func (c *workflowController) Activity(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	// Ownership check
	if _, err := c.service.Show(ctx.UserContext(), serverutils.UserID(ctx), id); err != nil {
		return err
	}

	res := mapper.ToActivityResponses(c.activity.Feed(id.String()))
	return ctx.JSON(serverutils.SuccessResponse("Success get workflow activity", res))
}

func (c *workflowController) Documents(ctx *fiber.Ctx) error {
	page := ctx.QueryInt("page", 1)
	limit := ctx.QueryInt("limit", 20)

	res, err := c.documents.List(ctx.UserContext(), serverutils.UserID(ctx), page, limit)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get revised documents", res))
}

func sessionID(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid workflow id")
	}
	return id, nil
}

func paragraphParams(ctx *fiber.Ctx) (uuid.UUID, int, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return uuid.Nil, 0, err
	}
	index, err := ctx.ParamsInt("index")
	if err != nil || index < 0 {
		return uuid.Nil, 0, fiber.NewError(fiber.StatusBadRequest, "Invalid paragraph index")
	}
	return id, index, nil
}

// WorkflowErrorStatus maps workflow domain errors to HTTP statuses.
func WorkflowErrorStatus(err error) (int, bool) {
	var invalidSelection *editor.InvalidSelectionError
	if errors.As(err, &invalidSelection) {
		return fiber.StatusUnprocessableEntity, true
	}

	var serviceErr *revision.ServiceError
	if errors.As(err, &serviceErr) {
		return fiber.StatusBadGateway, true
	}

	switch {
	case errors.Is(err, contract.ErrSessionNotFound):
		return fiber.StatusNotFound, true
	case errors.Is(err, workflow.ErrParagraphNotFound), errors.Is(err, workflow.ErrFeedbackNotFound):
		return fiber.StatusNotFound, true
	case errors.Is(err, workflow.ErrWrongStep),
		errors.Is(err, workflow.ErrProcessingNotCancellable),
		errors.Is(err, workflow.ErrAlreadyFinalized),
		errors.Is(err, workflow.ErrNotAllDecided),
		errors.Is(err, workflow.ErrNoThreadRef),
		errors.Is(err, workflow.ErrNoNextStage):
		return fiber.StatusConflict, true
	case errors.Is(err, extract.ErrUnsupportedExtension):
		return fiber.StatusUnsupportedMediaType, true
	case errors.Is(err, extract.ErrFileTooLarge):
		return fiber.StatusRequestEntityTooLarge, true
	case errors.Is(err, editor.ErrEmptySelection),
		errors.Is(err, workflow.ErrUploadRequired),
		errors.Is(err, workflow.ErrEmptyContent),
		errors.Is(err, extract.ErrEmptyDocument),
		errors.Is(err, extract.ErrInvalidEncoding):
		return fiber.StatusUnprocessableEntity, true
	case errors.Is(err, service.ErrArchiveDisabled):
		return fiber.StatusServiceUnavailable, true
	}
	return 0, false
}
