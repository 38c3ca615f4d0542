package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/minelurk/minelurk/internal/bot"
	"github.com/minelurk/minelurk/internal/config"
	"github.com/minelurk/minelurk/internal/session"
	"gopkg.in/yaml.v3"
)

type HttpServer struct {
	logger    *slog.Logger
	server    *http.Server
	manager   *bot.SupervisorManager
	scheduler *bot.Scheduler
	templates *template.Template
	wsServer  *WebSocketServer
}

var (
	//go:embed all:templates
	templatesFS embed.FS

	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
)

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

type WebSocketServer struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

func NewWebSocketServer() *WebSocketServer {
	return &WebSocketServer{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (s *WebSocketServer) Run() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = true
		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
		case message := <-s.broadcast:
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(s.clients, client)
				}
			}
		}
	}
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade connection to WebSocket", "error", err)
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, 256)}
	s.register <- client

	go s.writePump(client)
	go s.readPump(client)
}

func (s *WebSocketServer) writePump(client *Client) {
	defer func() {
		client.conn.Close()
	}()

	for message := range client.send {
		w, err := client.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		if err := w.Close(); err != nil {
			return
		}
	}
	client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (s *WebSocketServer) readPump(client *Client) {
	defer func() {
		s.unregister <- client
		client.conn.Close()
	}()

	for {
		_, _, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket read error", "error", err)
			}
			break
		}
	}
}

// IndexData is the payload rendered into the status page and pushed over the
// websocket once per second.
type IndexData struct {
	Version  string                   `json:"version"`
	Profiles map[string]ProfileStatus `json:"profiles"`
}

type ProfileStatus struct {
	session.Status
	Running bool   `json:"running"`
	Server  string `json:"server"`
}

func New(logger *slog.Logger, manager *bot.SupervisorManager, scheduler *bot.Scheduler) (*HttpServer, error) {
	templates, err := template.New("").ParseFS(templatesFS, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}

	return &HttpServer{
		logger:    logger,
		manager:   manager,
		scheduler: scheduler,
		templates: templates,
	}, nil
}

func (s *HttpServer) BroadcastStatus() {
	for {
		data := s.getStatusData()
		jsonData, err := json.Marshal(data)
		if err != nil {
			slog.Error("failed to marshal status data", "error", err)
			time.Sleep(1 * time.Second)
			continue
		}

		s.wsServer.broadcast <- jsonData
		time.Sleep(1 * time.Second)
	}
}

func (s *HttpServer) getStatusData() IndexData {
	profiles := make(map[string]ProfileStatus)
	for name, st := range s.manager.StatusAll() {
		server := ""
		if cfg, ok := config.GetProfile(name); ok {
			server = cfg.Address()
		}
		profiles[name] = ProfileStatus{
			Status:  st,
			Running: s.manager.Running(name),
			Server:  server,
		}
	}
	return IndexData{
		Version:  config.Version,
		Profiles: profiles,
	}
}

func (s *HttpServer) getRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if err := s.templates.ExecuteTemplate(w, "index.gohtml", s.getStatusData()); err != nil {
		s.logger.Error("error rendering index", slog.Any("error", err))
	}
}

func (s *HttpServer) initialData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.getStatusData())
}

func (s *HttpServer) startSupervisor(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("profile")
	if name == "" {
		http.Error(w, "profile is required", http.StatusBadRequest)
		return
	}

	cfg, found := config.GetProfile(name)
	if !found {
		http.Error(w, "unknown profile", http.StatusNotFound)
		return
	}
	if !s.scheduler.IsWithinSchedule(name, cfg) {
		s.logger.Info("manual start outside schedule window, starting anyway",
			slog.String("supervisor", name))
	}

	go func() {
		if err := s.manager.Start(name); err != nil {
			s.logger.Error("failed to start supervisor",
				slog.String("supervisor", name),
				slog.Any("error", err),
			)
		}
	}()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *HttpServer) stopSupervisor(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("profile")
	if name == "" {
		http.Error(w, "profile is required", http.StatusBadRequest)
		return
	}
	s.manager.Stop(name)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *HttpServer) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.ReloadConfig(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// saveSettings replaces the global settings with the posted YAML document and
// reloads the configuration so running components pick the changes up.
func (s *HttpServer) saveSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cfg config.MinelurkCfg
	if err := yaml.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid settings payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := config.SaveMinelurkConfig(&cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("settings saved")
	w.WriteHeader(http.StatusOK)
}

// saveProfile overwrites one profile's config with the posted YAML document.
// Validate fills the gaps, so partial documents are fine.
func (s *HttpServer) saveProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("profile")
	if name == "" {
		http.Error(w, "profile is required", http.StatusBadRequest)
		return
	}
	if _, found := config.GetProfile(name); !found {
		http.Error(w, "unknown profile", http.StatusNotFound)
		return
	}

	var cfg config.ProfileCfg
	if err := yaml.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid profile payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := config.SaveProfileConfig(name, &cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("profile saved", slog.String("profile", name))
	w.WriteHeader(http.StatusOK)
}

func (s *HttpServer) newProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := r.FormValue("name")
	if err := config.CreateFromTemplate(name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *HttpServer) Listen(port int) error {
	s.wsServer = NewWebSocketServer()
	go s.wsServer.Run()
	go s.BroadcastStatus()

	http.HandleFunc("/", s.getRoot)
	http.HandleFunc("/ws", s.wsServer.HandleWebSocket)
	http.HandleFunc("/initial-data", s.initialData)
	http.HandleFunc("/start", s.startSupervisor)
	http.HandleFunc("/stop", s.stopSupervisor)
	http.HandleFunc("/api/reload-config", s.reloadConfig)
	http.HandleFunc("/api/new-profile", s.newProfile)
	http.HandleFunc("/api/save-settings", s.saveSettings)
	http.HandleFunc("/api/save-profile", s.saveProfile)

	s.server = &http.Server{
		Addr: fmt.Sprintf(":%d", port),
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HttpServer) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
