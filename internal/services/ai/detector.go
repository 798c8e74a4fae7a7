package ai

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"camserver/internal/config"
	"camserver/internal/dto"
)

const (
	// ConfidenceThreshold is the minimum confidence for a raw detection to
	// count as a face. Detections at or below it are discarded.
	ConfidenceThreshold = 0.5

	inputSize = 300
)

// rawDetection is one row of the SSD output tensor, already read out of the
// result Mat.
type rawDetection struct {
	confidence float32
	left       float32
	top        float32
	right      float32
	bottom     float32
}

// DetectorService wraps the pretrained res10 SSD face model. Detect never
// returns an error: a frame that cannot be decoded, or a model that failed
// to load, yields an empty result so a flaky device never breaks ingestion.
type DetectorService struct {
	net    gocv.Net
	loaded bool
	mu     sync.Mutex
	log    *logrus.Logger
}

// NewDetectorService loads the Caffe model once at startup.
func NewDetectorService(cfg *config.Config, log *logrus.Logger) *DetectorService {
	service := &DetectorService{log: log}

	if err := service.initializeNet(cfg.PrototxtPath, cfg.CaffeModelPath); err != nil {
		service.log.Warnf("Could not initialize face detection network: %v", err)
		return service
	}

	return service
}

func (s *DetectorService) initializeNet(prototxtPath, modelPath string) error {
	if _, err := os.Stat(prototxtPath); os.IsNotExist(err) {
		return fmt.Errorf("prototxt file not found: %s", prototxtPath)
	}
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}

	net := gocv.ReadNetFromCaffe(prototxtPath, modelPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.loaded = true
	s.log.Info("Face detection network initialized successfully")
	return nil
}

// Detect runs one forward pass over the frame and returns the faces found,
// in the model's native detection order, with boxes in pixel coordinates of
// the original frame.
func (s *DetectorService) Detect(frame []byte) []dto.Face {
	if !s.loaded {
		return []dto.Face{}
	}

	mat, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		s.log.Errorf("Face detection: failed to decode frame: %v", err)
		return []dto.Face{}
	}
	defer mat.Close()

	if mat.Empty() {
		s.log.Error("Face detection: decoded frame is empty")
		return []dto.Face{}
	}

	width := mat.Cols()
	height := mat.Rows()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(inputSize, inputSize), 0, 0, gocv.InterpolationLinear)

	blob := gocv.BlobFromImage(resized, 1.0, image.Pt(inputSize, inputSize),
		gocv.NewScalar(104.0, 177.0, 123.0, 0), false, false)
	defer blob.Close()

	detections := s.forward(blob)

	return toFaces(detections, width, height)
}

// forward serializes access to the net. SetInput and Forward mutate the
// network, so concurrent ingestion threads must take turns here.
func (s *DetectorService) forward(blob gocv.Mat) []rawDetection {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()

	detections := make([]rawDetection, 0, reshaped.Rows())
	for i := 0; i < reshaped.Rows(); i++ {
		detections = append(detections, rawDetection{
			confidence: reshaped.GetFloatAt(i, 2),
			left:       reshaped.GetFloatAt(i, 3),
			top:        reshaped.GetFloatAt(i, 4),
			right:      reshaped.GetFloatAt(i, 5),
			bottom:     reshaped.GetFloatAt(i, 6),
		})
	}
	return detections
}

// toFaces filters raw detections by confidence and maps their normalized
// boxes to pixel coordinates of the original frame, clamped to its bounds.
// Detection order is preserved.
func toFaces(detections []rawDetection, width, height int) []dto.Face {
	faces := make([]dto.Face, 0)
	for _, det := range detections {
		if det.confidence <= ConfidenceThreshold {
			continue
		}

		left := clamp(int(det.left*float32(width)), 0, width)
		top := clamp(int(det.top*float32(height)), 0, height)
		right := clamp(int(det.right*float32(width)), 0, width)
		bottom := clamp(int(det.bottom*float32(height)), 0, height)

		faces = append(faces, dto.Face{
			Box:        [4]int{left, top, right, bottom},
			Confidence: float64(det.confidence),
		})
	}
	return faces
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
