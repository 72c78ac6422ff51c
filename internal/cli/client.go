package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// QueueResponse — очередь из API.
type QueueResponse struct {
	Name       string        `json:"name"`
	Subsystem  string        `json:"subsystem"`
	Instrument string        `json:"instrument,omitempty"`
	Paused     bool          `json:"paused"`
	Depth      int           `json:"depth"`
	Running    *TaskResponse `json:"running,omitempty"`
}

// TaskResponse — задача из API.
type TaskResponse struct {
	ID          string         `json:"id"`
	RunID       string         `json:"run_id,omitempty"`
	Queue       string         `json:"queue"`
	Subsystem   string         `json:"subsystem"`
	Instrument  string         `json:"instrument,omitempty"`
	Command     string         `json:"command"`
	Args        map[string]any `json:"args,omitempty"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	DependsOn   []string       `json:"depends_on,omitempty"`
	CreatedAt   string         `json:"created_at"`
	StartedAt   string         `json:"started_at,omitempty"`
	FinishedAt  string         `json:"finished_at,omitempty"`
}

// QueueTasksResponse — задачи одной очереди из API.
type QueueTasksResponse struct {
	Running *TaskResponse  `json:"running,omitempty"`
	Pending []TaskResponse `json:"pending"`
	History []TaskResponse `json:"history"`
}

// RunResponse — запуск из API.
type RunResponse struct {
	ID         string  `json:"id"`
	Flowcell   string  `json:"flowcell"`
	Recipe     string  `json:"recipe"`
	Cycles     int     `json:"cycles"`
	Status     string  `json:"status"`
	Error      string  `json:"error,omitempty"`
	Progress   float64 `json:"progress"`
	Tasks      int     `json:"tasks"`
	CreatedAt  string  `json:"created_at"`
	FinishedAt string  `json:"finished_at,omitempty"`
}

// RunDetailResponse — запуск с задачами из API.
type RunDetailResponse struct {
	RunResponse
	TaskList []TaskResponse `json:"task_list"`
}

// TaskLogEntry — строка журнала задач из API.
type TaskLogEntry struct {
	TaskID   string `json:"task_id"`
	RunID    string `json:"run_id"`
	Queue    string `json:"queue"`
	Command  string `json:"command"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	LoggedAt string `json:"logged_at"`
}

// StatusResponse — сводка состояния контроллера из API.
type StatusResponse struct {
	Experiment           string          `json:"experiment"`
	Queues               []QueueResponse `json:"queues"`
	MicroscopeOwner      string          `json:"microscope_owner,omitempty"`
	AwaitingConfirmation []string        `json:"awaiting_confirmation,omitempty"`
	Runs                 []RunResponse   `json:"runs,omitempty"`
}

// --- Request types ---

// RunRecipeRequest — запуск рецепта.
type RunRecipeRequest struct {
	Flowcell string `json:"flowcell"`
	Recipe   string `json:"recipe,omitempty"`
	Name     string `json:"name,omitempty"`
	Cycles   int    `json:"cycles,omitempty"`
}

// ReorderRequest — перестановка задачи.
type ReorderRequest struct {
	Index int `json:"index"`
}

// NewExperimentRequest — загрузка эксперимента.
type NewExperimentRequest struct {
	Path string `json:"path"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Sequora API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Queues ---

// ListQueues возвращает все очереди.
func (c *Client) ListQueues() ([]QueueResponse, error) {
	var queues []QueueResponse
	err := c.list("/api/v1/queues", &queues)
	return queues, err
}

// QueueTasks возвращает задачи одной очереди.
func (c *Client) QueueTasks(name string) (*QueueTasksResponse, error) {
	var tasks QueueTasksResponse
	err := c.get("/api/v1/queues/"+name+"/tasks", &tasks)
	return &tasks, err
}

// PauseAll ставит все очереди на паузу.
func (c *Client) PauseAll() error {
	return c.post("/api/v1/queues/pause", nil, nil)
}

// ResumeAll возобновляет все очереди.
func (c *Client) ResumeAll() error {
	return c.post("/api/v1/queues/resume", nil, nil)
}

// ClearAll удаляет все ожидающие задачи. Возвращает число удалённых.
func (c *Client) ClearAll() (int, error) {
	var result map[string]int
	if err := c.post("/api/v1/queues/clear", nil, &result); err != nil {
		return 0, err
	}
	return result["cleared"], nil
}

// PauseFlowcell ставит очереди флоуселла на паузу.
func (c *Client) PauseFlowcell(flowcell string) error {
	return c.post("/api/v1/flowcells/"+flowcell+"/pause", nil, nil)
}

// ResumeFlowcell возобновляет очереди флоуселла.
func (c *Client) ResumeFlowcell(flowcell string) error {
	return c.post("/api/v1/flowcells/"+flowcell+"/resume", nil, nil)
}

// --- Tasks ---

// DeleteTask удаляет ожидающую задачу.
func (c *Client) DeleteTask(id string) error {
	return c.delete("/api/v1/tasks/" + id)
}

// ReorderTask переставляет задачу на позицию index.
func (c *Client) ReorderTask(id string, index int) error {
	return c.post("/api/v1/tasks/"+id+"/reorder", ReorderRequest{Index: index}, nil)
}

// ConfirmTask подтверждает сообщение задачи USER.
func (c *Client) ConfirmTask(id string) error {
	return c.post("/api/v1/tasks/"+id+"/confirm", nil, nil)
}

// --- Runs ---

// RunRecipe запускает рецепт.
func (c *Client) RunRecipe(req RunRecipeRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/recipes/run", req, &run)
	return &run, err
}

// ListRuns возвращает запуски.
func (c *Client) ListRuns() ([]RunResponse, error) {
	var runs []RunResponse
	err := c.list("/api/v1/runs", &runs)
	return runs, err
}

// GetRun возвращает запуск с задачами.
func (c *Client) GetRun(id string) (*RunDetailResponse, error) {
	var run RunDetailResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// GetRunLog возвращает журнал задач запуска.
func (c *Client) GetRunLog(id string) ([]TaskLogEntry, error) {
	var entries []TaskLogEntry
	err := c.list("/api/v1/runs/"+id+"/log", &entries)
	return entries, err
}

// --- ROIs ---

// ROIResponse — ROI из API. Параметры съёмки опущены: таблица CLI
// показывает геометрию, полный вид доступен через --json.
type ROIResponse struct {
	Name     string `json:"name"`
	Flowcell string `json:"flowcell"`
	Stage    struct {
		XInit float64 `json:"x_init"`
		XLast float64 `json:"x_last"`
		YInit float64 `json:"y_init"`
		YLast float64 `json:"y_last"`
		ZInit float64 `json:"z_init"`
	} `json:"stage"`
}

// ListROIs возвращает ROI флоуселла.
func (c *Client) ListROIs(flowcell string) ([]ROIResponse, error) {
	var rois []ROIResponse
	err := c.list("/api/v1/flowcells/"+flowcell+"/rois", &rois)
	return rois, err
}

// SetROI добавляет или замещает ROI флоуселла. Тело запроса —
// готовый JSON с описанием ROI.
func (c *Client) SetROI(flowcell string, roi json.RawMessage) error {
	return c.put("/api/v1/flowcells/"+flowcell+"/rois", roi, nil)
}

// RemoveROI удаляет ROI флоуселла.
func (c *Client) RemoveROI(flowcell, name string) error {
	return c.delete("/api/v1/flowcells/" + flowcell + "/rois/" + name)
}

// --- Experiment and status ---

// NewExperiment загружает новую конфигурацию эксперимента.
func (c *Client) NewExperiment(path string) error {
	return c.post("/api/v1/experiments", NewExperimentRequest{Path: path}, nil)
}

// Status возвращает сводку состояния контроллера.
func (c *Client) Status() (*StatusResponse, error) {
	var status StatusResponse
	err := c.get("/api/v1/status", &status)
	return &status, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, result any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if lr.Data == nil {
		return nil
	}
	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
