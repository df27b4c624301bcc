package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/taskq/scheduler/internal/api/middleware"
	"github.com/taskq/scheduler/internal/queue"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
}

func NewServer(usecase *queue.Usecase, logger *zap.Logger) *Server {
	s := &Server{}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.ErrorHandlingMiddleware(logger))
	s.router.Use(cors.Default())

	NewTaskAPI(usecase).Bind(s.router)

	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
