package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/xhad/sawdust/internal/models"
	"github.com/xhad/sawdust/pkg/ingest"
	"github.com/xhad/sawdust/pkg/processor"
	"github.com/xhad/sawdust/pkg/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Answerer is the sole interface the transport shell needs from the
// pipeline.
type Answerer interface {
	Answer(ctx context.Context, query string, history []string, partition string) models.Envelope
}

type ServerConfig struct {
	Port             int
	DefaultPartition string
	Logger           zerolog.Logger
}

// Server is the thin HTTP shell around the pipeline, corpus and catalog.
type Server struct {
	config   ServerConfig
	pipeline Answerer
	store    *store.Store
	ingestor *ingest.Ingestor
}

func New(config ServerConfig, pipeline Answerer, st *store.Store, ingestor *ingest.Ingestor) *Server {
	if config.Port == 0 {
		config.Port = 8080
	}
	return &Server{
		config:   config,
		pipeline: pipeline,
		store:    st,
		ingestor: ingestor,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Get("/documents", s.handleDocuments)
	r.Post("/upload", s.handleUpload)
	r.Get("/products", s.handleListProducts)
	r.Post("/products", s.handleAddProduct)
	r.Delete("/products/{id}", s.handleDeleteProduct)
	r.Get("/ws", s.handleWebSocket)

	return r
}

func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.config.Logger.Info().Str("addr", addr).Msg("starting server")
	return http.ListenAndServe(addr, s.Router())
}

type chatRequest struct {
	Message       string   `json:"message"`
	ChatHistory   []string `json:"chat_history"`
	SelectedIndex string   `json:"selected_index,omitempty"`
}

// handleChat runs the pipeline and always answers 200 with an envelope;
// only a malformed request body is a transport error.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	envelope := s.pipeline.Answer(r.Context(), req.Message, req.ChatHistory, req.SelectedIndex)
	s.writeJSON(w, http.StatusOK, envelope)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.Documents(r.Context())
	if err != nil {
		s.config.Logger.Error().Err(err).Msg("failed to list documents")
		s.writeError(w, http.StatusInternalServerError, "failed to fetch documents")
		return
	}
	if docs == nil {
		docs = []store.DocumentInfo{}
	}
	s.writeJSON(w, http.StatusOK, docs)
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Chunks  int    `json:"chunks,omitempty"`
}

// handleUpload accepts a transcript file (plain text or HTML) and ingests
// it into the selected corpus partition.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeJSON(w, http.StatusOK, uploadResponse{Success: false, Message: "No file part"})
		return
	}
	defer file.Close()

	partition := r.FormValue("partition")
	if partition == "" {
		partition = s.config.DefaultPartition
	}
	url := r.FormValue("url")

	var text string
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".html", ".htm":
		text, err = processor.ExtractHTML(file)
	default:
		var data []byte
		data, err = io.ReadAll(file)
		text = string(data)
	}
	if err != nil {
		s.config.Logger.Error().Err(err).Str("file", header.Filename).Msg("failed to read upload")
		s.writeJSON(w, http.StatusOK, uploadResponse{Success: false, Message: "Could not read file"})
		return
	}

	chunks, err := s.ingestor.IngestTranscript(r.Context(), partition, "", url, text)
	if err != nil {
		s.config.Logger.Error().Err(err).Str("file", header.Filename).Msg("ingestion failed")
		s.writeJSON(w, http.StatusOK, uploadResponse{Success: false, Message: fmt.Sprintf("Error processing document: %v", err)})
		return
	}

	s.writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		Message: "File uploaded and processed successfully",
		Chunks:  chunks,
	})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		s.config.Logger.Error().Err(err).Msg("failed to list products")
		s.writeError(w, http.StatusInternalServerError, "failed to fetch products")
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	s.writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if product.Title == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	added, err := s.store.AddProduct(r.Context(), product)
	if err != nil {
		s.config.Logger.Error().Err(err).Msg("failed to add product")
		s.writeError(w, http.StatusInternalServerError, "failed to add product")
		return
	}
	s.writeJSON(w, http.StatusOK, added)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteProduct(r.Context(), id); err != nil {
		s.config.Logger.Error().Err(err).Str("id", id).Msg("failed to delete product")
		s.writeError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type wsMessage struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	History []string    `json:"history,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.config.Logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.config.Logger.Debug().Err(err).Msg("websocket closed")
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendWS(conn, wsMessage{Type: "error", Content: "invalid message"})
			continue
		}

		s.sendWS(conn, wsMessage{Type: "status", Content: "Thinking..."})
		envelope := s.pipeline.Answer(r.Context(), msg.Content, msg.History, "")
		s.sendWS(conn, wsMessage{Type: "response", Content: envelope.Response, Data: envelope})
	}
}

func (s *Server) sendWS(conn *websocket.Conn, msg wsMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		s.config.Logger.Error().Err(err).Msg("failed to send websocket message")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.config.Logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"message": message})
}
