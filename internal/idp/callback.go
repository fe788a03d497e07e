package idp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// callbackServer is the loopback stand-in for the provider popup's redirect
// target. It lives only for the duration of one login attempt.
type callbackServer struct {
	e    *echo.Echo
	code chan string
	errc chan error
}

func startCallback(redirectURI, state string) (*callbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	s := &callbackServer{
		e:    echo.New(),
		code: make(chan string, 1),
		errc: make(chan error, 1),
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.Use(middleware.Recover())

	s.e.GET(path, func(c echo.Context) error {
		if errParam := c.QueryParam("error"); errParam != "" {
			desc := c.QueryParam("error_description")
			select {
			case s.errc <- fmt.Errorf("provider denied authorization: %s (%s)", errParam, desc):
			default:
			}
			return c.String(http.StatusOK, "Login failed. You can close this window.")
		}

		if c.QueryParam("state") != state {
			return c.String(http.StatusBadRequest, "Invalid OAuth state")
		}

		code := c.QueryParam("code")
		if code == "" {
			return c.String(http.StatusBadRequest, "Missing code parameter")
		}

		select {
		case s.code <- code:
		default:
			// A second redirect for the same attempt is ignored.
		}
		return c.String(http.StatusOK, "Login complete. You can close this window.")
	})

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", u.Host, err)
	}
	s.e.Listener = ln

	go func() {
		if err := s.e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errc <- err:
			default:
			}
		}
	}()

	return s, nil
}

func (s *callbackServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.e.Shutdown(ctx)
}
