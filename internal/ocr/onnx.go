package ocr

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

// Recognition model input geometry. Crops are scaled to recHeight and padded
// on the right up to recMaxWidth.
const (
	recHeight   = 48
	recMaxWidth = 320
)

// ONNXOptions configures the onnxruntime text recognizer
type ONNXOptions struct {
	ModelPath   string
	DictPath    string
	LibraryPath string
	UseGPU      bool
}

// ONNX runs a CRNN text-recognition model (NCHW float input, [1,T,C]
// probabilities out) and decodes it greedily against a character dictionary.
type ONNX struct {
	logger  zerolog.Logger
	session *ort.DynamicAdvancedSession
	dict    []string
}

var envMu sync.Mutex

// NewONNX loads the model and dictionary
func NewONNX(logger zerolog.Logger, opts ONNXOptions) (*ONNX, error) {
	if _, err := os.Stat(opts.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", opts.ModelPath)
	}

	dict, err := loadDict(opts.DictPath)
	if err != nil {
		return nil, err
	}

	if err := initEnvironment(opts.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, fmt.Errorf("unexpected model signature: %d inputs, %d outputs", len(inputs), len(outputs))
	}

	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer sessOpts.Destroy()

	provider := "cpu"
	if opts.UseGPU {
		if err := appendCUDA(sessOpts); err != nil {
			logger.Warn().Err(err).Msg("CUDA unavailable, using CPU")
		} else {
			provider = "cuda"
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		opts.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		sessOpts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create recognition session: %w", err)
	}

	logger.Info().
		Str("model", opts.ModelPath).
		Str("provider", provider).
		Int("charset", len(dict)).
		Msg("text recognition model loaded")

	return &ONNX{
		logger:  logger.With().Str("backend", "onnx").Logger(),
		session: session,
		dict:    dict,
	}, nil
}

func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}
	return nil
}

func appendCUDA(sessOpts *ort.SessionOptions) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cuda.Destroy()
	return sessOpts.AppendExecutionProviderCUDA(cuda)
}

// loadDict reads one character per line. A space is appended as the last
// class, matching models trained with a space character.
func loadDict(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()

	var dict []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		dict = append(dict, strings.TrimRight(scanner.Text(), "\r\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return append(dict, " "), nil
}

// Recognize implements Recognizer
func (o *ONNX) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, width := pixels(img, recHeight, recMaxWidth)
	input, err := ort.NewTensor(ort.NewShape(1, 3, recHeight, int64(width)), data)
	if err != nil {
		return "", fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := o.session.Run([]ort.Value{input}, outputs); err != nil {
		return "", fmt.Errorf("recognition inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	probs, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return "", fmt.Errorf("unexpected output type %T", outputs[0])
	}
	shape := probs.GetShape()
	if len(shape) != 3 {
		return "", fmt.Errorf("unexpected output shape %v", shape)
	}

	return ctcGreedy(probs.GetData(), int(shape[1]), int(shape[2]), o.dict), nil
}

// Close implements Recognizer
func (o *ONNX) Close() error {
	o.logger.Debug().Msg("closing recognition session")
	if o.session != nil {
		return o.session.Destroy()
	}
	return nil
}

// pixels scales img to height h keeping its aspect ratio (width capped at
// maxW), pads to a multiple of 8 and returns CHW floats normalized to [-1, 1].
func pixels(img image.Image, h, maxW int) ([]float32, int) {
	b := img.Bounds()
	w := maxW
	if b.Dy() > 0 {
		w = (b.Dx()*h + b.Dy() - 1) / b.Dy()
	}
	if w < 1 {
		w = 1
	}
	if w > maxW {
		w = maxW
	}
	padded := (w + 7) / 8 * 8

	scaled := resize.Resize(uint(w), uint(h), img, resize.Bilinear)
	sb := scaled.Bounds()

	plane := h * padded
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := scaled.At(sb.Min.X+x, sb.Min.Y+y).RGBA()
			i := y*padded + x
			data[i] = float32(r>>8)/127.5 - 1
			data[plane+i] = float32(g>>8)/127.5 - 1
			data[2*plane+i] = float32(bl>>8)/127.5 - 1
		}
	}
	return data, padded
}

// ctcGreedy decodes [steps, classes] probabilities. Class 0 is the CTC blank;
// class i maps to dict[i-1]. Repeated classes collapse.
func ctcGreedy(probs []float32, steps, classes int, dict []string) string {
	var sb strings.Builder
	prev := 0
	for t := 0; t < steps; t++ {
		row := probs[t*classes : (t+1)*classes]
		best := 0
		for c := 1; c < classes; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		if best != 0 && best != prev && best-1 < len(dict) {
			sb.WriteString(dict[best-1])
		}
		prev = best
	}
	return normalize(sb.String())
}
