package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lappka/lappka/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDataset(sum string) *model.Dataset {
	return &model.Dataset{
		Filename: "quiz.html",
		Format:   model.FormatHTML,
		SHA256:   sum,
		Questions: []model.Question{
			{ID: "1", IsMain: true, Title: "Категория"},
			{ID: "1.1", Type: model.TypeMultiChoice, Title: "Столица Франции?", Difficulty: 75, Attempts: 40,
				Answers: []model.Answer{{ActualAnswer: "Париж", PartialCredit: "100,00%", Count: "30"}}},
			{ID: "1.2", Type: model.TypeNumerical, Title: "2+2?", Difficulty: 90, Attempts: 40},
		},
		TestInfo: []model.InfoItem{{Key: "Название теста", Value: "Итоговый"}},
	}
}

func TestDatasetCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.DatasetCount()
	if err != nil {
		t.Fatalf("DatasetCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 datasets, got %d", count)
	}

	ds, created, err := s.SaveDataset(testDataset("aaa"))
	if err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	if !created || ds.ID == "" || ds.UploadedAt.IsZero() {
		t.Fatalf("unexpected saved dataset %+v (created=%v)", ds, created)
	}

	got, err := s.GetDataset(ds.ID)
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if got == nil || len(got.Questions) != 3 || got.Questions[1].Answers[0].ActualAnswer != "Париж" {
		t.Fatalf("round trip lost data: %+v", got)
	}
	if got.TestInfo[0].Value != "Итоговый" {
		t.Errorf("test info = %+v", got.TestInfo)
	}

	missing, err := s.GetDataset("nope")
	if err != nil || missing != nil {
		t.Errorf("GetDataset(missing) = %v, %v", missing, err)
	}

	list, err := s.ListDatasets()
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(list) != 1 || list[0].QuestionCount != 2 || list[0].Format != model.FormatHTML {
		t.Errorf("ListDatasets = %+v", list)
	}
}

func TestSaveDatasetIdempotent(t *testing.T) {
	s := newTestStore(t)

	first, _, err := s.SaveDataset(testDataset("same"))
	if err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	again := testDataset("same")
	again.Filename = "renamed.html"
	second, created, err := s.SaveDataset(again)
	if err != nil {
		t.Fatalf("SaveDataset again: %v", err)
	}
	if created {
		t.Error("same checksum must not create a second dataset")
	}
	if second.ID != first.ID || second.Filename != "quiz.html" {
		t.Errorf("expected the stored dataset, got %+v", second)
	}
	if n, _ := s.DatasetCount(); n != 1 {
		t.Errorf("expected 1 dataset, got %d", n)
	}
}

func TestSaveDatasetConcurrent(t *testing.T) {
	s := newTestStore(t)

	const uploads = 8
	ids := make([]string, uploads)
	created := make([]bool, uploads)
	errs := make([]error, uploads)
	var wg sync.WaitGroup
	for i := range uploads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, c, err := s.SaveDataset(testDataset("race"))
			errs[i], created[i] = err, c
			if ds != nil {
				ids[i] = ds.ID
			}
		}()
	}
	wg.Wait()

	var n int
	for i := range uploads {
		if errs[i] != nil {
			t.Fatalf("upload %d: %v", i, errs[i])
		}
		if created[i] {
			n++
		}
		if ids[i] != ids[0] {
			t.Errorf("upload %d got dataset %s, want %s", i, ids[i], ids[0])
		}
	}
	if n != 1 {
		t.Errorf("%d uploads created a dataset, want 1", n)
	}
	if count, _ := s.DatasetCount(); count != 1 {
		t.Errorf("expected 1 dataset, got %d", count)
	}
}

func TestBanks(t *testing.T) {
	s := newTestStore(t)
	ds, _, err := s.SaveDataset(testDataset("bank-ds"))
	if err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}

	latest, err := s.LatestBank(ds.ID)
	if err != nil || latest != nil {
		t.Fatalf("LatestBank(empty) = %v, %v", latest, err)
	}

	bank := &model.Bank{
		DatasetID:    ds.ID,
		Filename:     "bank.gift",
		SHA256:       "g1",
		BaseCategory: "Тест",
		Questions:    []model.BankQuestion{{ID: "11", Name: "Скорость", Text: "::Скорость::?{#1}"}},
	}
	saved, err := s.SaveBank(bank)
	if err != nil {
		t.Fatalf("SaveBank: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("bank id not assigned")
	}

	dup, err := s.SaveBank(&model.Bank{DatasetID: ds.ID, Filename: "copy.gift", SHA256: "g1"})
	if err != nil {
		t.Fatalf("SaveBank duplicate: %v", err)
	}
	if dup.ID != saved.ID || dup.Filename != "bank.gift" {
		t.Errorf("duplicate upload should return stored bank, got %+v", dup)
	}

	newer := &model.Bank{DatasetID: ds.ID, Filename: "v2.gift", SHA256: "g2", UploadedAt: time.Now().Add(time.Hour)}
	if _, err := s.SaveBank(newer); err != nil {
		t.Fatalf("SaveBank newer: %v", err)
	}
	latest, err = s.LatestBank(ds.ID)
	if err != nil {
		t.Fatalf("LatestBank: %v", err)
	}
	if latest == nil || latest.Filename != "v2.gift" {
		t.Errorf("LatestBank = %+v", latest)
	}

	got, err := s.GetBank(saved.ID)
	if err != nil {
		t.Fatalf("GetBank: %v", err)
	}
	if got.BaseCategory != "Тест" || got.Questions[0].Name != "Скорость" {
		t.Errorf("GetBank = %+v", got)
	}
}

func TestDeleteDataset(t *testing.T) {
	s := newTestStore(t)
	ds, _, _ := s.SaveDataset(testDataset("del"))
	if _, err := s.SaveBank(&model.Bank{DatasetID: ds.ID, SHA256: "b"}); err != nil {
		t.Fatalf("SaveBank: %v", err)
	}
	if err := s.SetAdvice(ds.ID, "brief", "text"); err != nil {
		t.Fatalf("SetAdvice: %v", err)
	}

	if err := s.DeleteDataset(ds.ID); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}
	if got, _ := s.GetDataset(ds.ID); got != nil {
		t.Error("dataset still present")
	}
	if b, _ := s.LatestBank(ds.ID); b != nil {
		t.Error("bank still present")
	}
	if a, _ := s.GetAdvice(ds.ID, "brief"); a != "" {
		t.Errorf("advice still present: %q", a)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata("missing")
	if err != nil || v != "" {
		t.Fatalf("GetMetadata(missing) = %q, %v", v, err)
	}
	if err := s.SetMetadata("k", "v1"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata("k", "v2"); err != nil {
		t.Fatalf("SetMetadata update: %v", err)
	}
	if v, _ := s.GetMetadata("k"); v != "v2" {
		t.Errorf("expected v2, got %q", v)
	}

	if err := s.SetAdvice("ds", "detailed", "подробно"); err != nil {
		t.Fatalf("SetAdvice: %v", err)
	}
	if a, _ := s.GetAdvice("ds", "detailed"); a != "подробно" {
		t.Errorf("GetAdvice = %q", a)
	}
	if a, _ := s.GetAdvice("ds", "brief"); a != "" {
		t.Errorf("other variant should be empty, got %q", a)
	}
}

func TestUsersAndSessions(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateUser(model.User{Username: "teacher", DisplayName: "T", PasswordHash: "h", Role: model.UserRoleTeacher, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser(model.User{Username: "teacher", PasswordHash: "h"}); !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}

	u, err := s.GetUserByUsername("teacher")
	if err != nil || u == nil || u.ID != id || !u.Active {
		t.Fatalf("GetUserByUsername = %+v, %v", u, err)
	}
	if u, _ := s.GetUserByUsername("nobody"); u != nil {
		t.Error("expected nil for unknown user")
	}

	if err := s.UpdatePassword(id, "h2"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	if u, _ := s.GetUserByID(id); u.PasswordHash != "h2" {
		t.Errorf("password hash = %q", u.PasswordHash)
	}

	token, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	sess, err := s.GetAuthSession(token)
	if err != nil || sess == nil || sess.UserID != id {
		t.Fatalf("GetAuthSession = %+v, %v", sess, err)
	}

	if err := s.ToggleUserActive(id); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	if u, _ := s.GetUserByID(id); u.Active {
		t.Error("user should be inactive")
	}
	if sess, _ := s.GetAuthSession(token); sess != nil {
		t.Error("deactivated user's session should be removed")
	}

	users, err := s.ListUsers()
	if err != nil || len(users) != 1 {
		t.Errorf("ListUsers = %v, %v", users, err)
	}
	if n, _ := s.UserCount(); n != 1 {
		t.Errorf("UserCount = %d", n)
	}
}

func TestExpiredSession(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateUser(model.User{Username: "u", PasswordHash: "h", Role: model.UserRoleTeacher, Active: true})

	old := AuthSessionTTL
	AuthSessionTTL = -time.Minute
	t.Cleanup(func() { AuthSessionTTL = old })

	token, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if sess, _ := s.GetAuthSession(token); sess != nil {
		t.Error("expired session must not be returned")
	}
	if err := s.CleanupExpiredSessions(); err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
}
