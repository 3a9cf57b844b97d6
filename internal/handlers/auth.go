package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smbt-dev/inspectgo/internal/apperr"
	"github.com/smbt-dev/inspectgo/internal/models"
	"github.com/smbt-dev/inspectgo/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a registration request. It arrives as JSON, or
// as a multipart form with the same field names when credential scans are
// attached.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FIO             string `json:"fio"`
	Phone           string `json:"phone"`
	// Customer or inspector; administrators are not self-registered
	RoleID            uint       `json:"role_id"`
	CertificateNumber string     `json:"sertificate_number"`
	CertificateIssued *time.Time `json:"date_of_sert_issue"`
	ContractNumber    string     `json:"contract_number"`
	ContractIssued    *time.Time `json:"date_of_cont_issue"`
	WardNumber        string     `json:"ward_number"`
	WardIssued        *time.Time `json:"date_of_ward_issue"`
	WorkExperience    int        `json:"work_experience"`
}

// Form fields of the credential scans. Each doubles as the blob key prefix.
const (
	docCertificate = "sertificate"
	docContract    = "insurance_contract"
	docWard        = "ward"
)

var registerDocuments = []string{docCertificate, docContract, docWard}

type tokenResponse struct {
	Tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"tokens"`
	User *models.User `json:"user"`
}

func (r *Router) issueTokens(w http.ResponseWriter, status int, user *models.User) {
	access, refresh, err := utils.GenerateTokens(user, r.cfg.JWTSecret)
	if err != nil {
		r.log.Error("failed to generate tokens", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}
	var resp tokenResponse
	resp.Tokens.AccessToken = access
	resp.Tokens.RefreshToken = refresh
	resp.User = r.withDocumentPaths(user)
	respondJSON(w, status, resp)
}

// withDocumentPaths returns a copy of user whose person carries retrievable
// paths instead of blob keys
func (r *Router) withDocumentPaths(user *models.User) *models.User {
	if user.Person == nil {
		return user
	}
	person := *user.Person
	for _, file := range []*string{&person.CertificateFile, &person.ContractFile, &person.WardFile} {
		if *file != "" {
			*file = r.resolver.Qualify(*file)
		}
	}
	out := *user
	out.Person = &person
	return &out
}

// login handles user login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	ctx, cancel := r.db.WithTimeout(req.Context())
	defer cancel()
	db := r.db.WithContext(ctx)

	// 1. Find User
	var user models.User
	err := db.Preload("Person").Where("email = ?", strings.ToLower(loginReq.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		r.respondErr(w, apperr.Store("find user", err))
		return
	}

	// 2. Check Password
	if !utils.CheckPasswordHash(loginReq.Password, user.HashedPassword) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 3. Update Last Login
	now := time.Now().UTC()
	user.LastLogin = &now
	if err := db.Model(&user).Update("last_login", now).Error; err != nil {
		r.log.Warn("failed to record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	r.issueTokens(w, http.StatusOK, &user)
}

// register creates a person and its login in one transaction. Inspectors
// must attach all three credential scans.
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var regReq RegisterRequest
	docs := map[string]*upload{}
	if isMultipart(req) {
		var err error
		regReq, docs, err = readRegisterForm(w, req)
		if err != nil {
			r.respondErr(w, err)
			return
		}
		defer closeUploads(docs)
	} else if err := json.NewDecoder(req.Body).Decode(&regReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	email := strings.ToLower(strings.TrimSpace(regReq.Email))
	switch {
	case email == "" || !strings.Contains(email, "@"):
		respondError(w, http.StatusBadRequest, "A valid email is required")
		return
	case len(regReq.Password) < 6:
		respondError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	case regReq.Password != regReq.ConfirmPassword:
		respondError(w, http.StatusBadRequest, "Passwords do not match")
		return
	case strings.TrimSpace(regReq.FIO) == "":
		respondError(w, http.StatusBadRequest, "fio is required")
		return
	}
	if regReq.RoleID == 0 {
		regReq.RoleID = models.RoleCustomer
	}
	if regReq.RoleID != models.RoleCustomer && regReq.RoleID != models.RoleExterminator {
		respondError(w, http.StatusBadRequest, "role_id must be a customer or an inspector")
		return
	}
	if regReq.RoleID == models.RoleExterminator && len(docs) != len(registerDocuments) {
		respondError(w, http.StatusBadRequest, "Inspectors must attach sertificate, insurance_contract and ward documents")
		return
	}

	// 1. Hash Password
	hashedPassword, err := utils.HashPassword(regReq.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	// 2. Store credential scans
	keys, err := r.saveDocuments(req, docs)
	if err != nil {
		r.respondErr(w, err)
		return
	}

	ctx, cancel := r.db.WithTimeout(req.Context())
	defer cancel()

	// 3. Create Person and User
	user := models.User{
		Email:          email,
		HashedPassword: hashedPassword,
		Person: &models.Person{
			FIO:               strings.TrimSpace(regReq.FIO),
			Phone:             regReq.Phone,
			RoleID:            regReq.RoleID,
			CertificateNumber: regReq.CertificateNumber,
			CertificateIssued: regReq.CertificateIssued,
			CertificateFile:   keys[docCertificate],
			ContractNumber:    regReq.ContractNumber,
			ContractIssued:    regReq.ContractIssued,
			ContractFile:      keys[docContract],
			WardNumber:        regReq.WardNumber,
			WardIssued:        regReq.WardIssued,
			WardFile:          keys[docWard],
			WorkExperience:    regReq.WorkExperience,
		},
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
			return apperr.Store("check email", err)
		}
		if taken > 0 {
			return apperr.ErrConflict
		}
		if err := tx.Create(user.Person).Error; err != nil {
			return apperr.Store("create person", err)
		}
		user.PersonID = user.Person.ID
		if err := tx.Omit("Person").Create(&user).Error; err != nil {
			return apperr.Store("create user", err)
		}
		return nil
	})
	if err != nil {
		for _, key := range keys {
			r.removeBlob(req, key)
		}
	}
	if errors.Is(err, apperr.ErrConflict) {
		respondError(w, http.StatusConflict, "Email is already registered")
		return
	}
	if err != nil {
		r.respondErr(w, err)
		return
	}

	// 4. Generate Tokens for immediate login
	r.issueTokens(w, http.StatusCreated, &user)
}

func isMultipart(req *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// readRegisterForm decodes a multipart registration and opens the attached
// credential scans. The caller closes them.
func readRegisterForm(w http.ResponseWriter, req *http.Request) (RegisterRequest, map[string]*upload, error) {
	var regReq RegisterRequest
	if err := parseMultipart(w, req); err != nil {
		return regReq, nil, err
	}

	regReq.Email = req.FormValue("email")
	regReq.Password = req.FormValue("password")
	regReq.ConfirmPassword = req.FormValue("confirmPassword")
	regReq.FIO = req.FormValue("fio")
	regReq.Phone = req.FormValue("phone")
	regReq.CertificateNumber = req.FormValue("sertificate_number")
	regReq.ContractNumber = req.FormValue("contract_number")
	regReq.WardNumber = req.FormValue("ward_number")

	role, err := formUint(req, "role_id")
	if err != nil {
		return regReq, nil, err
	}
	if role != nil {
		regReq.RoleID = *role
	}
	if s := req.FormValue("work_experience"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return regReq, nil, apperr.Invalid("work_experience must be a non-negative integer")
		}
		regReq.WorkExperience = n
	}
	for name, dst := range map[string]**time.Time{
		"date_of_sert_issue": &regReq.CertificateIssued,
		"date_of_cont_issue": &regReq.ContractIssued,
		"date_of_ward_issue": &regReq.WardIssued,
	} {
		if *dst, err = formDate(req, name); err != nil {
			return regReq, nil, err
		}
	}

	docs := make(map[string]*upload, len(registerDocuments))
	for _, field := range registerDocuments {
		if len(req.MultipartForm.File[field]) == 0 {
			continue
		}
		up, err := readFile(w, req, field, isDocument)
		if err != nil {
			closeUploads(docs)
			return regReq, nil, err
		}
		docs[field] = up
	}
	return regReq, docs, nil
}

// formDate parses a YYYY-MM-DD (or RFC 3339) form value
func formDate(req *http.Request, name string) (*time.Time, error) {
	s := req.FormValue(name)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Invalid("%s must be a date (YYYY-MM-DD)", name)
}

func closeUploads(docs map[string]*upload) {
	for _, up := range docs {
		up.close()
	}
}

// saveDocuments stores the credential scans and returns their keys by form
// field. Nothing is left behind when one of them fails.
func (r *Router) saveDocuments(req *http.Request, docs map[string]*upload) (map[string]string, error) {
	keys := make(map[string]string, len(docs))
	for _, field := range registerDocuments {
		up, ok := docs[field]
		if !ok {
			continue
		}
		key, err := r.blobs.Save(req.Context(), field, up.mimeType, up.body)
		if err != nil {
			for _, saved := range keys {
				r.removeBlob(req, saved)
			}
			return nil, err
		}
		keys[field] = key
	}
	return keys, nil
}
