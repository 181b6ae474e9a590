package user_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/audit"
	rbacDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/user"
	"github.com/frahmantamala/innovation-portal/internal/permission"
	permissionPostgres "github.com/frahmantamala/innovation-portal/internal/permission/postgres"
	"github.com/frahmantamala/innovation-portal/internal/user"
	userPostgres "github.com/frahmantamala/innovation-portal/internal/user/postgres"
	pkglogger "github.com/frahmantamala/innovation-portal/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordedEvents struct {
	events []audit.DomainEvent
}

func (r *recordedEvents) LogDomainEvent(ctx context.Context, event audit.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

var _ = Describe("User Handler Integration", func() {
	var (
		db       *gorm.DB
		handler  *user.Handler
		recorder *recordedEvents
	)

	withUser := func(req *http.Request, id string) *http.Request {
		return req.WithContext(internal.ContextWithUserID(req.Context(), id))
	}

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		Expect(db.AutoMigrate(
			&userDatamodel.User{},
			&rbacDatamodel.Role{}, &rbacDatamodel.Permission{}, &rbacDatamodel.RolePermission{}, &rbacDatamodel.UserRole{},
		)).To(Succeed())

		Expect(db.Create(&userDatamodel.User{ID: "u-1", Email: "alice@example.com", IsActive: true}).Error).NotTo(HaveOccurred())
		submitter := &rbacDatamodel.Role{Name: "Submitter"}
		Expect(db.Create(submitter).Error).NotTo(HaveOccurred())
		create := &rbacDatamodel.Permission{Key: permission.SubmissionsCreate}
		readOwn := &rbacDatamodel.Permission{Key: permission.SubmissionsReadOwn}
		Expect(db.Create(create).Error).NotTo(HaveOccurred())
		Expect(db.Create(readOwn).Error).NotTo(HaveOccurred())
		Expect(db.Create(&[]rbacDatamodel.RolePermission{
			{RoleID: submitter.ID, PermissionID: create.ID},
			{RoleID: submitter.ID, PermissionID: readOwn.ID},
		}).Error).NotTo(HaveOccurred())
		Expect(db.Create(&rbacDatamodel.UserRole{UserID: "u-1", RoleID: submitter.ID}).Error).NotTo(HaveOccurred())

		recorder = &recordedEvents{}
		resolver := permission.NewResolver(permissionPostgres.NewPermissionRepository(db), pkglogger.Discard())
		service := user.NewService(userPostgres.NewUserRepository(db), resolver, recorder, pkglogger.Discard())
		handler = user.NewHandler(service)
	})

	It("should return the profile with roles and permissions", func() {
		req := withUser(httptest.NewRequest(http.MethodGet, "/users/me", nil), "u-1")
		w := httptest.NewRecorder()

		handler.GetCurrentUser(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var profile user.Profile
		Expect(json.NewDecoder(w.Body).Decode(&profile)).To(Succeed())
		Expect(profile.Email).To(Equal("alice@example.com"))
		Expect(profile.ProfileCompleted).To(BeFalse())
		Expect(profile.Roles).To(Equal([]string{"Submitter"}))
		Expect(profile.Permissions).To(ConsistOf(permission.SubmissionsCreate, permission.SubmissionsReadOwn))
	})

	It("should complete the profile and audit it", func() {
		req := withUser(httptest.NewRequest(http.MethodPost, "/users/me/profile", strings.NewReader(`{"name":"  Alice Liddell "}`)), "u-1")
		w := httptest.NewRecorder()

		handler.CompleteProfile(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var profile user.Profile
		Expect(json.NewDecoder(w.Body).Decode(&profile)).To(Succeed())
		Expect(*profile.Name).To(Equal("Alice Liddell"))
		Expect(profile.ProfileCompleted).To(BeTrue())
		Expect(recorder.events).To(HaveLen(1))
		Expect(recorder.events[0].Action).To(Equal(audit.ActionProfileCompleted))
	})

	It("should reject a name that is too short", func() {
		req := withUser(httptest.NewRequest(http.MethodPost, "/users/me/profile", strings.NewReader(`{"name":"A"}`)), "u-1")
		w := httptest.NewRecorder()

		handler.CompleteProfile(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(recorder.events).To(BeEmpty())
	})

	It("should answer 404 for a user that no longer exists", func() {
		req := withUser(httptest.NewRequest(http.MethodGet, "/users/me", nil), "ghost")
		w := httptest.NewRecorder()

		handler.GetCurrentUser(w, req)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("should require an authenticated caller", func() {
		w := httptest.NewRecorder()
		handler.GetCurrentUser(w, httptest.NewRequest(http.MethodGet, "/users/me", nil))
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})
})
