package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/oauth2"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func fakeSheetsServer(t *testing.T, withIPC bool) *httptest.Server {
	t.Helper()
	tabs := map[string][][]any{
		"Tablamun": {
			{"departamento", "codigo_entidad", "nombre_entidad", "poblacion", "categoria"},
			{"Antioquia", "210105001", "Medellín", 2612958, "ESP"},
		},
		"Tabladep":             {{"codigo_entidad", "nombre_entidad"}, {"110505000", "Antioquia"}},
		"Periodos":             {{"periodo", "Personalizado.1"}, {"20241201", "Diciembre 2024"}},
		"Tablacontrolingresos": {{"Nombre de la Cuenta", "Código Completo"}, {"INGRESOS", "1"}},
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/values:batchGet"):
			var ranges []map[string]any
			for _, name := range r.URL.Query()["ranges"] {
				ranges = append(ranges, map[string]any{"range": name, "values": tabs[name]})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"valueRanges": ranges})
		case strings.HasSuffix(r.URL.Path, "/values/IPC"):
			if !withIPC {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Unable to parse range: IPC"}}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"values": [][]any{{"año", "indice"}, {2024, 144.88}}})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestSource(t *testing.T, srv *httptest.Server) *Source {
	t.Helper()
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return New(svc, "sheet-id", nil)
}

func TestLoad(t *testing.T) {
	srv := fakeSheetsServer(t, true)
	defer srv.Close()

	tables, err := newTestSource(t, srv).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tables.Entities) != 2 || tables.Entities[0].Population.Value != 2612958 {
		t.Fatalf("entities %+v", tables.Entities)
	}
	if tables.Periods[0].Label != "Diciembre 2024" {
		t.Fatalf("periods %+v", tables.Periods)
	}
	if tables.PriceIndex[2024] != 144.88 {
		t.Fatalf("price index %v", tables.PriceIndex)
	}
}

func TestLoadWithoutPriceIndexTab(t *testing.T) {
	srv := fakeSheetsServer(t, false)
	defer srv.Close()

	tables, err := newTestSource(t, srv).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tables.PriceIndex != nil {
		t.Fatalf("expected no price index, got %v", tables.PriceIndex)
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	if _, err := NewFromEnv(context.Background(), " ", nil); err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Fatalf("got %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("GOOGLE_OAUTH_TOKEN_FILE", "")
	if _, err := NewFromEnv(context.Background(), "id", nil); err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("got %v", err)
	}
}

func TestNewFromEnv_OAuthTokenWithoutClient(t *testing.T) {
	t.Setenv("GOOGLE_OAUTH_TOKEN_FILE", filepath.Join(t.TempDir(), "token.json"))
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_FILE", "")
	if _, err := NewFromEnv(context.Background(), "id", nil); !errors.Is(err, ErrNoOAuthClient) {
		t.Fatalf("got %v", err)
	}
}

const testOAuthClient = `{"installed":{"client_id":"cid.apps.googleusercontent.com","client_secret":"secret",
"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",
"redirect_uris":["http://localhost"]}}`

func TestOAuthConfigFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", testOAuthClient)
	cfg, err := OAuthConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ClientID != "cid.apps.googleusercontent.com" || len(cfg.Scopes) != 1 || cfg.Scopes[0] != gsheet.SpreadsheetsReadonlyScope {
		t.Fatalf("config %+v", cfg)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	want := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}
	if err := SaveToken(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadToken(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
		t.Fatalf("got %+v", got)
	}
	if info, err := os.Stat(path); err != nil || info.Mode().Perm() != 0600 {
		t.Fatalf("token file mode %v %v", info, err)
	}
}
