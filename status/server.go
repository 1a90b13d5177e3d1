package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "status")

const (
	// 单次写websocket的超时
	writeWait = 10 * time.Second
	// 关闭websocket时等待对端确认的时间
	closeGracePeriod = time.Second
	// 推送间隔非正时使用的默认值
	defaultStreamInterval = time.Second
)

// Server 状态HTTP服务
// 功能：GET /status 返回最新快照，GET /ws 按固定间隔推送快照
type Server struct {
	cell     *Cell
	interval time.Duration
	srv      *http.Server
	upgrader websocket.Upgrader

	done     chan struct{} // Shutdown时关闭，结束所有推送
	doneOnce sync.Once
}

// NewServer 创建状态服务
// 参数：addr-监听地址，allowedOrigin-允许跨域的来源，cell-快照单元，streamInterval-websocket推送间隔（非正时取1秒）
func NewServer(addr, allowedOrigin string, cell *Cell, streamInterval time.Duration) *Server {
	if streamInterval <= 0 {
		streamInterval = defaultStreamInterval
	}
	s := &Server{
		cell:     cell,
		interval: streamInterval,
		done:     make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}
	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleStream).Methods(http.MethodGet)
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowCredentials: true,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
	})
	s.srv = &http.Server{Addr: addr, Handler: c.Handler(r)}
	return s
}

// Handler 完整的HTTP处理链（路由与CORS）
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Serve 监听并服务，Shutdown后返回nil
func (s *Server) Serve() error {
	log.Infof("status server listening at %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 停止推送并关闭服务
func (s *Server) Shutdown(ctx context.Context) error {
	s.doneOnce.Do(func() { close(s.done) })
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(FromSnapshot(s.cell.Load())); err != nil {
		log.Warnf("write status: %v", err)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("upgrade: %v", err)
		return
	}
	defer s.closeWebsocket(ws)

	// 客户端不发送数据，读循环只用于发现连接断开
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(FromSnapshot(s.cell.Load())); err != nil {
			log.Debugf("stream closed: %v", err)
			return
		}
		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-s.done:
			return
		}
	}
}

func (s *Server) closeWebsocket(ws *websocket.Conn) {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.Sleep(closeGracePeriod)
	ws.Close()
}
