package cmd

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jsphweid/melodyscore/constants"
	"github.com/jsphweid/melodyscore/db"
	"github.com/jsphweid/melodyscore/model"
	"github.com/jsphweid/melodyscore/musicxml"
	"github.com/jsphweid/melodyscore/quantize"
	"github.com/jsphweid/melodyscore/render"
	"github.com/jsphweid/melodyscore/score"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serves",
	Long:  `Serves the quantize and render HTTP API on $PORT.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return serve(":"+constants.GetPort(), NewServer(store))
	},
}

func openStore() (db.Store, error) {
	endpoint := constants.GetDynamoEndpoint()
	if endpoint == "" {
		logrus.Info("DYNAMODB_ENDPOINT not set, keeping scores in memory")
		return db.NewMemoryStore(), nil
	}
	logrus.WithField("endpoint", endpoint).Info("storing scores in DynamoDB")
	return db.NewLocalDynamoStore(endpoint, constants.GetAWSRegion(), constants.GetDynamoTable())
}

type Server struct {
	store db.Store
	log   logrus.FieldLogger
}

func NewServer(store db.Store) *Server {
	return &Server{store: store, log: logrus.WithField("component", "server")}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/quantize", s.HandleQuantize).Methods("POST")
	router.HandleFunc("/render", s.HandleRender).Methods("POST")
	router.HandleFunc("/render/musicxml", s.HandleRenderMusicXML).Methods("POST")
	router.HandleFunc("/render/midi", s.HandleRenderMidi).Methods("POST")
	router.HandleFunc("/scores/{id}", s.HandleGetScore).Methods("GET")
	return router
}

func serve(addr string, s *Server) error {
	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{constants.GetCorsOrigin()},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: true,
	}).Handler(s.Router())
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logrus.WithField("addr", addr).Info("listening")
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps pipeline errors to status codes. Anything unrecognised is
// a server bug.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var invalid *score.InvalidScoreError
	var unrep *musicxml.UnrepresentableDurationError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{Error: err.Error()})
	case errors.As(err, &unrep):
		writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{
			Error:     err.Error(),
			Measure:   unrep.Measure,
			StartTick: unrep.StartTick,
			EndTick:   unrep.EndTick,
		})
	case errors.Is(err, db.ErrNotFound):
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: err.Error()})
	default:
		s.log.WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
	}
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.Wrap(err, "could not read request body")
	}
	return errors.Wrap(json.Unmarshal(body, v), "could not unmarshal request body")
}

func (s *Server) HandleQuantize(w http.ResponseWriter, r *http.Request) {
	var input model.QuantizeRequestBody
	if err := decodeBody(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	cfg := quantize.DefaultConfig(input.TempoBPM)
	cfg.Log = s.log
	if input.TimeSignature != nil {
		cfg.TimeSignature = *input.TimeSignature
	}
	if input.KeySignature != nil {
		cfg.KeySignature = *input.KeySignature
	}
	if input.Title != "" {
		cfg.Title = input.Title
	}
	res := quantize.New(cfg).Score(input.Candidates)
	if err := score.Validate(res); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.WithFields(logrus.Fields{"candidates": len(input.Candidates), "notes": len(res.Notes)}).Info("quantized")
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) readScore(w http.ResponseWriter, r *http.Request) (model.Score, bool) {
	in, err := score.Decode(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return in, false
	}
	if r.URL.Query().Get("snap") == "true" {
		in = render.Snap(in)
	}
	return in, true
}

func notationOptions(r *http.Request) render.Options {
	return render.Options{Notation: musicxml.Options{AllowTies: r.URL.Query().Get("ties") == "true"}}
}

func (s *Server) HandleRender(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readScore(w, r)
	if !ok {
		return
	}
	res, err := render.Render(in, notationOptions(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	id := uuid.New().String()
	if err := s.store.Put(r.Context(), id, in); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.WithFields(logrus.Fields{"id": id, "measures": len(res.Measures)}).Info("rendered")
	writeJSON(w, http.StatusOK, model.RenderResponse{
		Id:         id,
		MusicXML:   string(res.MusicXML),
		MidiBase64: base64.StdEncoding.EncodeToString(res.Midi),
		Events:     res.Events,
		Measures:   len(res.Measures),
	})
}

func (s *Server) HandleRenderMusicXML(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readScore(w, r)
	if !ok {
		return
	}
	_, data, err := render.Notation(in, notationOptions(r).Notation)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.recordare.musicxml+xml")
	w.Write(data)
}

func (s *Server) HandleRenderMidi(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readScore(w, r)
	if !ok {
		return
	}
	_, data, err := render.Events(in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Write(data)
}

func (s *Server) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
