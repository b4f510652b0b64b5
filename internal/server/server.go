package server

import (
	"context"
	"log"
	"net/http"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"

	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, *models.Session, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.User, *models.Session, error)
	Logout(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (*models.User, error)
}

type TaskGateway interface {
	ParseFilter(status, priority, dueDate, ordering string) (models.TaskFilter, error)
	List(ctx context.Context, user *models.User, filter models.TaskFilter) ([]models.Task, error)
	Get(ctx context.Context, user *models.User, id string) (*models.Task, error)
	Create(ctx context.Context, user *models.User, in models.TaskInput) (*models.Task, error)
	Update(ctx context.Context, user *models.User, id string, in models.TaskInput, full bool) (*models.Task, error)
	Delete(ctx context.Context, user *models.User, id string) error
}

type TaskAPI struct {
	httpSrv *http.Server
	auth    Authenticator
	tasks   TaskGateway
}

func NewTaskAPI(auth Authenticator, tasks TaskGateway, cfg *Config) *TaskAPI {
	if auth == nil || tasks == nil {
		return nil
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	api := TaskAPI{
		httpSrv: &http.Server{Addr: cfg.ListenAddr()},
		auth:    auth,
		tasks:   tasks,
	}
	api.configRoutes()

	return &api
}

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (api *TaskAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}

	log.Printf("[INFO] listening on %s", api.httpSrv.Addr)
	if err := api.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (api *TaskAPI) Shutdown(ctx context.Context) error {
	return api.httpSrv.Shutdown(ctx)
}

func (api *TaskAPI) Handler() http.Handler {
	return api.httpSrv.Handler
}

func (api *TaskAPI) configRoutes() {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), GzipRequestDecompress(), GzipResponseCompress())
	router.HandleMethodNotAllowed = true

	router.NoMethod(func(ctx *gin.Context) {
		ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})
	router.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": errors.ErrNotFound.Error()})
	})

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/register", api.register)
	router.POST("/login", api.login)
	router.POST("/logout", api.RequireAuth(), api.logout)

	tasks := router.Group("/tasks", api.RequireAuth())
	{
		tasks.GET("", api.listTasks)
		tasks.POST("", api.createTask)
		tasks.GET("/:taskID", api.getTask)
		tasks.PUT("/:taskID", api.replaceTask)
		tasks.PATCH("/:taskID", api.patchTask)
		tasks.DELETE("/:taskID", api.deleteTask)
	}

	api.httpSrv.Handler = router
}

func (api *TaskAPI) register(ctx *gin.Context) {
	var req models.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.writeError(ctx, errors.ErrBadRequest)
		return
	}

	user, session, err := api.auth.Register(ctx.Request.Context(), req)
	if err != nil {
		api.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, models.RegisterResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Token:    session.Token,
	})
}

func (api *TaskAPI) login(ctx *gin.Context) {
	var req models.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.writeError(ctx, errors.ErrBadRequest)
		return
	}

	user, session, err := api.auth.Login(ctx.Request.Context(), req)
	if err != nil {
		api.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, models.LoginResponse{
		Token:    session.Token,
		UserID:   user.ID,
		Username: user.Username,
	})
}

func (api *TaskAPI) logout(ctx *gin.Context) {
	if err := api.auth.Logout(ctx.Request.Context(), ctx.GetString(tokenKey)); err != nil {
		api.writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusOK)
}

func (api *TaskAPI) listTasks(ctx *gin.Context) {
	user := currentUser(ctx)
	filter, err := api.tasks.ParseFilter(ctx.Query("status"), ctx.Query("priority"), ctx.Query("due_date"), ctx.Query("ordering"))
	if err != nil {
		api.writeError(ctx, err)
		return
	}

	tasks, err := api.tasks.List(ctx.Request.Context(), user, filter)
	if err != nil {
		api.writeError(ctx, err)
		return
	}

	resp := make([]models.TaskResponse, 0, len(tasks))
	for i := range tasks {
		resp = append(resp, models.NewTaskResponse(&tasks[i], user.Username))
	}
	ctx.JSON(http.StatusOK, resp)
}

func (api *TaskAPI) getTask(ctx *gin.Context) {
	user := currentUser(ctx)
	task, err := api.tasks.Get(ctx.Request.Context(), user, ctx.Param("taskID"))
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.NewTaskResponse(task, user.Username))
}

func (api *TaskAPI) createTask(ctx *gin.Context) {
	user := currentUser(ctx)
	var in models.TaskInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		api.writeError(ctx, errors.ErrBadRequest)
		return
	}

	task, err := api.tasks.Create(ctx.Request.Context(), user, in)
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, models.NewTaskResponse(task, user.Username))
}

func (api *TaskAPI) replaceTask(ctx *gin.Context) { api.updateTask(ctx, true) }

func (api *TaskAPI) patchTask(ctx *gin.Context) { api.updateTask(ctx, false) }

func (api *TaskAPI) updateTask(ctx *gin.Context, full bool) {
	user := currentUser(ctx)
	var in models.TaskInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		api.writeError(ctx, errors.ErrBadRequest)
		return
	}

	task, err := api.tasks.Update(ctx.Request.Context(), user, ctx.Param("taskID"), in, full)
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.NewTaskResponse(task, user.Username))
}

func (api *TaskAPI) deleteTask(ctx *gin.Context) {
	user := currentUser(ctx)
	if err := api.tasks.Delete(ctx.Request.Context(), user, ctx.Param("taskID")); err != nil {
		api.writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// writeError maps domain errors to status codes. Unclassified errors are logged
// and reported without detail.
func (api *TaskAPI) writeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, errors.ErrBadRequest):
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
	case errors.Is(err, errors.ErrValidationFailed):
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errors.ErrInvalidCredentials):
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidCredentials.Error()})
	case errors.Is(err, errors.ErrNotAuthenticated):
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errors.ErrNotAuthenticated.Error()})
	case errors.Is(err, errors.ErrNotFound):
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": errors.ErrNotFound.Error()})
	default:
		log.Printf("[ERROR] %s %s: %v", ctx.Request.Method, ctx.Request.URL.Path, err)
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
	}
}
