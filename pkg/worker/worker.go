package worker

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/retailcore/till-service/pkg/logger"
)

type WorkerHandler = func(workerIndex int, job interface{})

// WorkerManager fans jobs out over a fixed pool of goroutines. The job
// channel may be shared externally, so Exit signals the workers instead of
// closing it.
type WorkerManager struct {
	bufferSize     int
	jobChannel     chan interface{}
	numberOfWorker int
	sigTerm        chan os.Signal
	do             WorkerHandler
	waiter         *sync.WaitGroup
}

func NewWorkerManager(bufferSize, numberOfWorkers int, jobChannel chan interface{}) *WorkerManager {
	if jobChannel == nil {
		jobChannel = make(chan interface{}, bufferSize)
	}
	// one buffered slot per worker so termination signals are never lost
	sigChan := make(chan os.Signal, numberOfWorkers)
	signal.Notify(sigChan, syscall.SIGTERM)

	return &WorkerManager{
		bufferSize:     bufferSize,
		numberOfWorker: numberOfWorkers,
		jobChannel:     jobChannel,
		sigTerm:        sigChan,
		waiter:         &sync.WaitGroup{},
	}
}

func (w *WorkerManager) GetUnreadCount() int64 {
	if w.jobChannel == nil {
		return 0
	}
	return int64(len(w.jobChannel))
}

func (w *WorkerManager) JobEvents() chan interface{} {
	return w.jobChannel
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

func (w *WorkerManager) Enqueue(val interface{}) {
	w.jobChannel <- val
}

// Start blocks until all workers have been told to exit.
func (w *WorkerManager) Start() error {
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			for {
				select {
				case job := <-w.jobChannel:
					w.run(index, job)
				case <-w.sigTerm:
					w.waiter.Done()
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()

	return errors.New("workers terminated")
}

// run isolates a single job so a panicking handler takes down one job,
// not the whole pool.
func (w *WorkerManager) run(index int, job interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker recovered from panic", "worker", index, "panic", r)
		}
	}()
	w.do(index, job)
}

func (w *WorkerManager) Exit() {
	logger.Info("worker manager shutting down")
	for i := 0; i < w.numberOfWorker; i++ {
		w.sigTerm <- syscall.SIGSTOP
	}
}
