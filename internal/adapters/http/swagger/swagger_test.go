package swagger

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given a swagger handler", t, func() {
		mux := http.NewServeMux()
		Register(mux)

		convey.Convey("Then it should serve the OpenAPI document", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody))

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
			convey.So(w.Body.String(), convey.ShouldStartWith, "openapi: 3.0.3")
		})

		convey.Convey("And every documented operation path is present", func() {
			doc := string(OpenAPI)
			for _, path := range []string{"/state", "/current/increment", "/current/odds", "/home/{id}", "/mappings/{id}", "/obs/connect", "/odds"} {
				convey.So(strings.Contains(doc, "  "+path+":"), convey.ShouldBeTrue)
			}
		})

		convey.Convey("And it should serve the ReDoc page", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-docs", http.NoBody))

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `spec-url="/openapi.yaml"`)
		})

		convey.Convey("And a nil mux panics", func() {
			convey.So(func() { Register(nil) }, convey.ShouldPanic)
		})
	})
}
