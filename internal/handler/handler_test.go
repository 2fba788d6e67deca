package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/lappka/lappka/internal/i18n"
	"github.com/lappka/lappka/internal/llm"
	"github.com/lappka/lappka/internal/llm/prompts"
	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/modules"
	"github.com/lappka/lappka/internal/store"

	_ "modernc.org/sqlite"
)

const sampleCSV = `Статистика теста,,,,,
№,Тип вопроса,Название вопроса,Попытки,Индекс легкости,"Индекс  дискриминации"
1,Случайный,Категория,,,
1.1,Числовой ответ,Скорость света,30,"84,21%","45,10%"
1.2,Короткий ответ,Столица Франции,20,"40,00%","10,00%"
,,,,,
Модель ответа,Частичный кредит,Количество,Частота,,
4,"100,00%",25,"83,33%",,
5,"0,00%",5,"16,67%",,
`

const sampleGIFT = `$CATEGORY: $course$/top/Физика/Механика

// question: 101  name: Скорость
::Скорость::Скорость света{#300000}

// question: 102  name: Столица
::Столица::Столица Франции{=Париж ~Лондон}
`

type testEnv struct {
	t       *testing.T
	store   *store.Store
	router  http.Handler
	cookies map[string]*http.Cookie
}

type envOptions struct {
	modules  *modules.Table
	llm      *llm.Client
	basePath string
	dbPath   string
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	if err := prompts.Load(prompts.FS); err != nil {
		t.Fatalf("prompts.Load: %v", err)
	}
	dbPath := opts.dbPath
	if dbPath == "" {
		dbPath = ":memory:"
	}
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	h, err := New(s, opts.llm, opts.modules, model.AppConfig{
		BasePath:      opts.basePath,
		MaxUploadMB:   1,
		AdviceVariant: string(prompts.VariantBrief),
		Lang:          "en",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	if opts.basePath != "" {
		r.Route(opts.basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}
	return &testEnv{t: t, store: s, router: r, cookies: make(map[string]*http.Cookie)}
}

func (e *testEnv) addUser(username, password string, role model.UserRole) int64 {
	e.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		e.t.Fatalf("hash: %v", err)
	}
	id, err := e.store.CreateUser(model.User{Username: username, DisplayName: username, PasswordHash: string(hash), Role: role, Active: true})
	if err != nil {
		e.t.Fatalf("CreateUser: %v", err)
	}
	return id
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range e.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(e.cookies, c.Name)
			continue
		}
		e.cookies[c.Name] = c
	}
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) csrfToken() string {
	if c, ok := e.cookies[csrfCookieName]; ok {
		return c.Value
	}
	return ""
}

func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	if form.Get("csrf_token") == "" {
		form.Set("csrf_token", e.csrfToken())
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *testEnv) postFile(path, filename, content string) *httptest.ResponseRecorder {
	e.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("csrf_token", e.csrfToken()); err != nil {
		e.t.Fatalf("write field: %v", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		e.t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

func (e *testEnv) login(username, password string) *httptest.ResponseRecorder {
	e.get("/login")
	return e.postForm("/login", url.Values{"username": {username}, "password": {password}})
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %.300s", rec.Code, want, rec.Body.String())
	}
}

// uploadSample logs in as a teacher, uploads the sample CSV and returns the
// dataset ID.
func (e *testEnv) uploadSample() string {
	e.t.Helper()
	e.addUser("teacher", "secret", model.UserRoleTeacher)
	expectStatus(e.t, e.login("teacher", "secret"), http.StatusSeeOther)
	e.get("/")
	rec := e.postFile("/datasets", "quiz.csv", sampleCSV)
	expectStatus(e.t, rec, http.StatusSeeOther)
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/datasets/") {
		e.t.Fatalf("unexpected redirect %q", loc)
	}
	return strings.TrimPrefix(loc, "/datasets/")
}

func TestLoginRequired(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.get("/")
	expectStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.addUser("teacher", "secret", model.UserRoleTeacher)

	rec := env.login("teacher", "wrong")
	expectStatus(t, rec, http.StatusUnauthorized)
	if !strings.Contains(rec.Body.String(), "Invalid username or password") {
		t.Error("login error not shown")
	}

	rec = env.login("teacher", "secret")
	expectStatus(t, rec, http.StatusSeeOther)
	if _, ok := env.cookies[sessionCookieName]; !ok {
		t.Fatal("session cookie not set")
	}

	rec = env.get("/")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "Upload quiz statistics") {
		t.Error("index page not rendered")
	}

	rec = env.postForm("/logout", nil)
	expectStatus(t, rec, http.StatusSeeOther)
	expectStatus(t, env.get("/"), http.StatusSeeOther)
}

func TestCSRFRejected(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.addUser("teacher", "secret", model.UserRoleTeacher)
	env.login("teacher", "secret")
	env.get("/")

	rec := env.postForm("/datasets/x/delete", url.Values{"csrf_token": {"forged"}})
	expectStatus(t, rec, http.StatusForbidden)
}

func TestUploadDataset(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	id := env.uploadSample()

	rec := env.get("/datasets/" + id)
	expectStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/datasets/"+id+"/questions" {
		t.Errorf("first tab redirect = %q", loc)
	}

	rec = env.get("/datasets/" + id + "/questions")
	expectStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	for _, want := range []string{"Скорость света", "Showing 2 of 2 questions", "<svg"} {
		if !strings.Contains(body, want) {
			t.Errorf("questions tab lacks %q", want)
		}
	}

	rec = env.get("/datasets/" + id + "/questions?type=" + url.QueryEscape(model.TypeShortAnswer))
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "Showing 1 of 2 questions") {
		t.Error("type filter not applied")
	}

	env.get("/")
	again := env.postFile("/datasets", "renamed.csv", sampleCSV)
	expectStatus(t, again, http.StatusSeeOther)
	if loc := again.Header().Get("Location"); loc != "/datasets/"+id {
		t.Errorf("same file should open the stored dataset, got %q", loc)
	}
	if n, _ := env.store.DatasetCount(); n != 1 {
		t.Errorf("DatasetCount = %d, want 1", n)
	}
	if !strings.Contains(env.get("/").Body.String(), "1 dataset stored.") {
		t.Error("index lacks the dataset count")
	}
}

func TestUploadRejected(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.uploadSample()
	env.get("/")

	rec := env.postFile("/datasets", "bank.gift", sampleGIFT)
	expectStatus(t, rec, http.StatusBadRequest)
	if !strings.Contains(rec.Body.String(), "Could not read bank.gift") {
		t.Errorf("error not shown: %.300s", rec.Body.String())
	}
}

func TestModuleTabs(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	id := env.uploadSample()

	tests := []struct {
		module string
		want   string
	}{
		{modules.Questions, "Questions per category"},
		{modules.IRT, "Person-Item Map"},
		{modules.Expert, "Test bank balance coefficient"},
		{modules.Categorize, "Upload the GIFT export"},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			rec := env.get("/datasets/" + id + "/" + tt.module)
			expectStatus(t, rec, http.StatusOK)
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("tab %s lacks %q", tt.module, tt.want)
			}
		})
	}

	expectStatus(t, env.get("/datasets/"+id+"/charts"), http.StatusNotFound)
	expectStatus(t, env.get("/datasets/missing/irt"), http.StatusNotFound)
}

func TestModuleTable(t *testing.T) {
	tbl, err := modules.Parse([]byte("modules:\n  - id: expert\n    name: Expert\n    enabled: true\n  - id: irt\n    name: IRT\n    enabled: false\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	env := newTestEnv(t, envOptions{modules: tbl})
	id := env.uploadSample()

	rec := env.get("/datasets/" + id)
	if loc := rec.Header().Get("Location"); loc != "/datasets/"+id+"/expert" {
		t.Errorf("first enabled tab = %q", loc)
	}
	expectStatus(t, env.get("/datasets/"+id+"/irt"), http.StatusNotFound)
	expectStatus(t, env.get("/datasets/"+id+"/questions"), http.StatusNotFound)

	body := env.get("/datasets/" + id + "/expert").Body.String()
	if strings.Contains(body, "/irt\"") {
		t.Error("disabled module must not get a tab")
	}
}

func TestCategorizeFlow(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	id := env.uploadSample()
	env.get("/datasets/" + id + "/categorize")

	rec := env.postFile("/datasets/"+id+"/categorize", "bank.gift", sampleGIFT)
	expectStatus(t, rec, http.StatusSeeOther)

	bank, err := env.store.LatestBank(id)
	if err != nil || bank == nil {
		t.Fatalf("LatestBank = %v, %v", bank, err)
	}

	rec = env.get("/datasets/" + id + "/categorize")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "/banks/"+bank.ID+"/export.gift") {
		t.Error("export link missing")
	}

	rec = env.get("/banks/" + bank.ID + "/export.gift")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "bank_categorized.gift") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if !strings.Contains(rec.Body.String(), "$CATEGORY:") || !strings.Contains(rec.Body.String(), "::Столица::") {
		t.Errorf("unexpected GIFT export:\n%s", rec.Body.String())
	}

	env.get("/datasets/" + id + "/categorize")
	rec = env.postFile("/datasets/"+id+"/categorize", "bank.csv", "nope")
	expectStatus(t, rec, http.StatusBadRequest)
	if !strings.Contains(rec.Body.String(), "Could not read the question bank") {
		t.Error("bank error not shown")
	}

	expectStatus(t, env.get("/banks/missing/export.gift"), http.StatusNotFound)
}

func TestExportGIFTDatasetMissing(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.uploadSample()
	bank, err := env.store.SaveBank(&model.Bank{DatasetID: "gone", Filename: "bank.gift", SHA256: "b1"})
	if err != nil {
		t.Fatalf("SaveBank: %v", err)
	}
	expectStatus(t, env.get("/banks/"+bank.ID+"/export.gift"), http.StatusNotFound)
}

func TestExportGIFTStoreError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "lappka.db")
	env := newTestEnv(t, envOptions{dbPath: dbPath})
	id := env.uploadSample()
	bank, err := env.store.SaveBank(&model.Bank{DatasetID: id, Filename: "bank.gift", SHA256: "b1"})
	if err != nil {
		t.Fatalf("SaveBank: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`UPDATE datasets SET data = '{' WHERE id = ?`, id); err != nil {
		t.Fatalf("corrupt dataset: %v", err)
	}

	expectStatus(t, env.get("/banks/"+bank.ID+"/export.gift"), http.StatusInternalServerError)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.addUser("teacher", "secret", model.UserRoleTeacher)
	env.login("teacher", "secret")

	rec := env.get("/password")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "Change password") {
		t.Error("password form not rendered")
	}

	rec = env.postForm("/password", url.Values{"current": {"secret"}})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = env.postForm("/password", url.Values{"current": {"wrong"}, "new": {"better"}})
	expectStatus(t, rec, http.StatusUnauthorized)
	if !strings.Contains(rec.Body.String(), "The current password is wrong.") {
		t.Errorf("wrong password not reported: %.300s", rec.Body.String())
	}

	rec = env.postForm("/password", url.Values{"current": {"secret"}, "new": {"better"}})
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "Password changed") {
		t.Error("success not shown")
	}

	env.postForm("/logout", nil)
	expectStatus(t, env.login("teacher", "secret"), http.StatusUnauthorized)
	expectStatus(t, env.login("teacher", "better"), http.StatusSeeOther)
}

func TestReportJSON(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	id := env.uploadSample()

	rec := env.get("/datasets/" + id + "/report.json")
	expectStatus(t, rec, http.StatusOK)
	var got struct {
		Source struct {
			Filename string `json:"filename"`
		} `json:"source"`
		Questions []json.RawMessage `json:"questions"`
		Expert    struct {
			Summary struct {
				Questions int `json:"questions"`
			} `json:"summary"`
		} `json:"expert"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if got.Source.Filename != "quiz.csv" || len(got.Questions) != 2 || got.Expert.Summary.Questions != 2 {
		t.Errorf("unexpected report %+v", got)
	}
}

func TestDeleteDataset(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	id := env.uploadSample()
	env.get("/")

	expectStatus(t, env.postForm("/datasets/"+id+"/delete", nil), http.StatusSeeOther)
	expectStatus(t, env.get("/datasets/"+id+"/questions"), http.StatusNotFound)
}

func TestAdvice(t *testing.T) {
	var calls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": "Add medium questions."}, "finish_reason": "stop"}},
		})
	}))
	t.Cleanup(api.Close)

	env := newTestEnv(t, envOptions{llm: llm.New(api.URL+"/v1", "key", "test-model")})
	id := env.uploadSample()
	env.get("/datasets/" + id + "/expert")

	rec := env.postForm("/datasets/"+id+"/advice", url.Values{"variant": {"brief"}})
	expectStatus(t, rec, http.StatusSeeOther)

	rec = env.get("/datasets/" + id + "/expert?variant=brief")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "Add medium questions.") {
		t.Error("advice not shown")
	}

	env.postForm("/datasets/"+id+"/advice", url.Values{"variant": {"brief"}})
	if n := calls.Load(); n != 1 {
		t.Errorf("cached advice should not call the model again, calls = %d", n)
	}
	env.get("/datasets/" + id + "/expert")
	env.postForm("/datasets/"+id+"/advice", url.Values{"variant": {"brief"}, "refresh": {"1"}})
	if n := calls.Load(); n != 2 {
		t.Errorf("refresh should call the model, calls = %d", n)
	}
}

func TestAdviceDisabled(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	id := env.uploadSample()

	rec := env.get("/datasets/" + id + "/expert")
	if !strings.Contains(rec.Body.String(), "Commentary needs a language model") {
		t.Error("disabled commentary note missing")
	}
	rec = env.postForm("/datasets/"+id+"/advice", nil)
	expectStatus(t, rec, http.StatusSeeOther)
}

func TestAdminUsers(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	adminID := env.addUser("admin", "root", model.UserRoleAdmin)
	env.addUser("teacher", "secret", model.UserRoleTeacher)

	env.login("teacher", "secret")
	expectStatus(t, env.get("/admin/users"), http.StatusForbidden)

	env.cookies = make(map[string]*http.Cookie)
	env.login("admin", "root")
	expectStatus(t, env.get("/admin/users"), http.StatusOK)

	rec := env.postForm("/admin/users", url.Values{"username": {"new"}, "password": {"pw"}, "role": {"teacher"}})
	expectStatus(t, rec, http.StatusSeeOther)
	if u, _ := env.store.GetUserByUsername("new"); u == nil || u.DisplayName != "new" {
		t.Errorf("created user = %+v", u)
	}

	env.get("/admin/users")
	expectStatus(t, env.postForm("/admin/users", url.Values{"username": {"new"}, "password": {"pw"}}), http.StatusConflict)
	env.get("/admin/users")
	expectStatus(t, env.postForm("/admin/users", url.Values{"username": {"x"}, "password": {"pw"}, "role": {"root"}}), http.StatusBadRequest)

	env.get("/admin/users")
	rec = env.postForm("/admin/users/"+itoa(adminID)+"/toggle", nil)
	expectStatus(t, rec, http.StatusBadRequest)

	teacher, _ := env.store.GetUserByUsername("teacher")
	env.get("/admin/users")
	expectStatus(t, env.postForm("/admin/users/"+itoa(teacher.ID)+"/toggle", nil), http.StatusSeeOther)
	if u, _ := env.store.GetUserByID(teacher.ID); u.Active {
		t.Error("teacher should be deactivated")
	}
}

func TestBasePath(t *testing.T) {
	env := newTestEnv(t, envOptions{basePath: "/lappka"})
	rec := env.get("/lappka/")
	expectStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/lappka/login" {
		t.Errorf("Location = %q, want /lappka/login", loc)
	}

	rec = env.get("/lappka/login")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `action="/lappka/login"`) {
		t.Error("form action should include the base path")
	}
	if c := env.cookies[csrfCookieName]; c == nil || c.Path != "/lappka/" {
		t.Errorf("csrf cookie = %+v", c)
	}
}

func TestExportName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"bank.gift", "bank_categorized.gift"},
		{"Механика.txt", "Механика_categorized.gift"},
		{`a"b.gift`, "a_b_categorized.gift"},
		{".gift", "bank_categorized.gift"},
	}
	for _, tt := range tests {
		if got := exportName(tt.in); got != tt.want {
			t.Errorf("exportName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
