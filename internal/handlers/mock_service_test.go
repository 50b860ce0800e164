package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"sonoff_server/internal/gateway"
	"sonoff_server/internal/models"
	"sonoff_server/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockDevices struct {
	list      []service.DeviceView
	device    *service.DeviceView
	err       error
	deleteErr error

	lastID     string
	lastInput  service.DeviceInput
	lastUpdate service.DeviceUpdate
}

func (m *mockDevices) List(ctx context.Context) ([]service.DeviceView, error) {
	return m.list, m.err
}
func (m *mockDevices) Get(ctx context.Context, id string) (*service.DeviceView, error) {
	m.lastID = id
	return m.device, m.err
}
func (m *mockDevices) Create(ctx context.Context, in service.DeviceInput) (*service.DeviceView, error) {
	m.lastInput = in
	return m.device, m.err
}
func (m *mockDevices) Update(ctx context.Context, id string, in service.DeviceUpdate) (*service.DeviceView, error) {
	m.lastID = id
	m.lastUpdate = in
	return m.device, m.err
}
func (m *mockDevices) Delete(ctx context.Context, id string) error {
	m.lastID = id
	return m.deleteErr
}

type mockTimers struct {
	list  []models.Timer
	timer *models.Timer
	err   error

	lastDevice string
	lastTimer  string
	lastInput  service.TimerInput
}

func (m *mockTimers) List(ctx context.Context, deviceID string) ([]models.Timer, error) {
	m.lastDevice = deviceID
	return m.list, m.err
}
func (m *mockTimers) Get(ctx context.Context, deviceID, timerID string) (*models.Timer, error) {
	m.lastDevice, m.lastTimer = deviceID, timerID
	return m.timer, m.err
}
func (m *mockTimers) Create(ctx context.Context, deviceID string, in service.TimerInput) (*models.Timer, error) {
	m.lastDevice, m.lastInput = deviceID, in
	return m.timer, m.err
}
func (m *mockTimers) Update(ctx context.Context, deviceID, timerID string, in service.TimerInput) (*models.Timer, error) {
	m.lastDevice, m.lastTimer, m.lastInput = deviceID, timerID, in
	return m.timer, m.err
}
func (m *mockTimers) Delete(ctx context.Context, deviceID, timerID string) error {
	m.lastDevice, m.lastTimer = deviceID, timerID
	return m.err
}

type mockEventLog struct {
	resp       []models.DeviceEvent
	err        error
	lastDevice string
	lastFrom   time.Time
	lastTo     time.Time
	lastType   string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.DeviceEvent, error) {
	m.lastDevice = f.DeviceID
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// memDeviceStore backs a real gateway and device service in websocket tests.
type memDeviceStore struct {
	mu      sync.Mutex
	devices map[string]models.Device
}

func newMemDeviceStore() *memDeviceStore {
	return &memDeviceStore{devices: make(map[string]models.Device)}
}

func (s *memDeviceStore) FindByID(ctx context.Context, id string) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *memDeviceStore) Save(ctx context.Context, d *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.ID] = *d
	return nil
}

func (s *memDeviceStore) List(ctx context.Context) ([]models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	return out, nil
}

func (s *memDeviceStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.devices[id]
	delete(s.devices, id)
	return ok, nil
}

func (s *memDeviceStore) UpdateHandshake(ctx context.Context, id, model, version string) error {
	return s.update(id, func(d *models.Device) {
		d.ApplyTelemetry(models.Telemetry{Version: version})
		if model != "" {
			d.Model = model
		}
	})
}

func (s *memDeviceStore) UpdateTelemetry(ctx context.Context, id string, t models.Telemetry) error {
	return s.update(id, func(d *models.Device) { d.ApplyTelemetry(t) })
}

func (s *memDeviceStore) update(id string, fn func(d *models.Device)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return errors.New("device not found")
	}
	fn(&d)
	s.devices[id] = d
	return nil
}

func (s *memDeviceStore) DeleteTimers(ctx context.Context, deviceID string, ids []string) (int, error) {
	return 0, nil
}

type nopEvents struct{}

func (nopEvents) Append(ctx context.Context, e models.DeviceEvent) error { return nil }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	return newTestRouterWith(s, nil, Options{})
}

func newTestRouterWith(s *service.Service, gw *gateway.Gateway, opts Options) *gin.Engine {
	h := NewHandler(s, gw, opts, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
